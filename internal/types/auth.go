package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateUserRequest registers an applicant. Nationality is an ISO 3166-1
// alpha-2 code and is passed to assessments as part of the applicant profile.
type CreateUserRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Nationality string `json:"nationality,omitempty" validate:"omitempty,iso3166_1_alpha2"`
}

// Normalize trims input, lowercases the email and uppercases the nationality.
func (r *CreateUserRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
	r.Nationality = strings.ToUpper(strings.TrimSpace(r.Nationality))
}

// Validate checks the struct tags.
func (r *CreateUserRequest) Validate() error {
	return validate.Struct(r)
}

// LoginRequest signs an applicant in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims and lowercases the email.
func (r *LoginRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
}

// Validate checks the struct tags.
func (r *LoginRequest) Validate() error {
	return validate.Struct(r)
}

// User is the public view of an account.
type User struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Nationality string    `json:"nationality,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LoginResponse is returned by register and login.
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// UpdatePasswordRequest changes the signed-in user's password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}

// Validate checks the struct tags.
func (r *UpdatePasswordRequest) Validate() error {
	return validate.Struct(r)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
