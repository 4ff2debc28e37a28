package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/config"
	"github.com/jonathan/visa-navigator/internal/db"
	"github.com/jonathan/visa-navigator/internal/types"
)

// UserService holds the account rules: registration, credential checks,
// password changes and deletion.
type UserService struct {
	users     UserStore
	passwords *config.PasswordConfig
}

// NewUserService creates a UserService.
func NewUserService(users UserStore, passwords *config.PasswordConfig) *UserService {
	return &UserService{users: users, passwords: passwords}
}

// publicUser strips the password fields from a stored account.
func publicUser(u *db.User) *types.User {
	return &types.User{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Nationality: u.Nationality,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// hash hashes pw, reporting an over-long password against field.
func (s *UserService) hash(field, pw string) (string, error) {
	h, err := s.passwords.HashPassword(pw)
	switch {
	case errors.Is(err, config.ErrPasswordTooLong):
		return "", &ErrValidation{Field: field, Message: fmt.Sprintf("must be at most %d bytes", config.MaxPasswordBytes)}
	case err != nil:
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return h, nil
}

// Register creates an account with its password set.
func (s *UserService) Register(ctx context.Context, req *types.CreateUserRequest) (*types.User, error) {
	h, err := s.hash("password", req.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.CreateUser(ctx, db.NewUser{
		Name:         req.Name,
		Email:        req.Email,
		Nationality:  req.Nationality,
		PasswordHash: h,
	})
	if errors.Is(err, db.ErrEmailTaken) {
		return nil, &ErrEmailAlreadyExists{Email: req.Email}
	}
	if err != nil {
		return nil, err
	}
	return publicUser(u), nil
}

// Login checks credentials. Unknown emails, accounts without a password and
// wrong passwords all yield the same ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, req *types.LoginRequest) (*types.User, error) {
	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if u == nil || !u.PasswordSet || !s.passwords.VerifyPassword(req.Password, u.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}
	return publicUser(u), nil
}

// UpdatePassword replaces the password after checking the current one.
func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return &ErrUserNotFound{UserID: userID}
	}
	if !s.passwords.VerifyPassword(currentPassword, u.PasswordHash) {
		return &ErrPasswordMismatch{}
	}

	h, err := s.hash("newPassword", newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, h); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// Delete removes the account and its stored assessments.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	deleted, err := s.users.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return &ErrUserNotFound{UserID: userID}
	}
	return nil
}
