package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// statusCoder is implemented by service errors that map to a client status.
type statusCoder interface {
	StatusCode() int
}

// HTTPStatus returns the status for err, looking through wrapped errors.
// Errors without a mapping are server failures.
func HTTPStatus(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// ErrEmailAlreadyExists: registration with a taken email.
type ErrEmailAlreadyExists struct{ Email string }

func (e *ErrEmailAlreadyExists) Error() string {
	return "email already registered: " + e.Email
}
func (e *ErrEmailAlreadyExists) StatusCode() int { return http.StatusConflict }

// ErrInvalidCredentials: unknown email or wrong password, deliberately
// indistinguishable.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string   { return "invalid email or password" }
func (e *ErrInvalidCredentials) StatusCode() int { return http.StatusUnauthorized }

// ErrPasswordMismatch: the current password given to a password change is wrong.
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string   { return "current password is incorrect" }
func (e *ErrPasswordMismatch) StatusCode() int { return http.StatusUnauthorized }

// ErrValidation: a field failed a rule the validator tags cannot express.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
func (e *ErrValidation) StatusCode() int { return http.StatusBadRequest }

// notFound is embedded by the lookup errors.
type notFound struct{}

func (notFound) StatusCode() int { return http.StatusNotFound }

// ErrUserNotFound: no account with this id.
type ErrUserNotFound struct {
	notFound
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string { return fmt.Sprintf("user not found: %s", e.UserID) }

// ErrRouteNotFound: the route id is not in the catalog.
type ErrRouteNotFound struct {
	notFound
	RouteID string
}

func (e *ErrRouteNotFound) Error() string { return "visa route not found: " + e.RouteID }

// ErrSessionNotFound: the wizard session is unknown or has expired.
type ErrSessionNotFound struct {
	notFound
	SessionID string
}

func (e *ErrSessionNotFound) Error() string { return "wizard session not found: " + e.SessionID }

// ErrAssessmentNotFound: no such assessment for the caller.
type ErrAssessmentNotFound struct {
	notFound
	AssessmentID string
}

func (e *ErrAssessmentNotFound) Error() string { return "assessment not found: " + e.AssessmentID }
