package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	authmw "github.com/jonathan/visa-navigator/internal/server/middleware"
	"github.com/jonathan/visa-navigator/internal/types"
)

type accountRequest interface {
	Validate() error
}

// decodeAccountRequest decodes, normalizes and validates the body into req,
// writing a 400 and returning false on failure.
func decodeAccountRequest(w http.ResponseWriter, r *http.Request, req accountRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if n, ok := req.(interface{ Normalize() }); ok {
		n.Normalize()
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage reports the first failed field and rule.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("validation error: %s - %s", verrs[0].Field(), verrs[0].Tag())
	}
	return "validation error: invalid request"
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if !decodeAccountRequest(w, r, &req) {
		return
	}
	user, err := s.userService.Register(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("account registered", "user_id", user.ID)
	s.writeSession(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeAccountRequest(w, r, &req) {
		return
	}
	user, err := s.userService.Login(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, user)
}

// writeSession answers a successful sign-in with the user and a fresh token.
func (s *Server) writeSession(w http.ResponseWriter, status int, user *types.User) {
	token, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		s.logger.Error("failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, status, types.LoginResponse{User: user, Token: token})
}

// handleUpdatePassword lets users change only their own password.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.accountOwner(w, r)
	if !ok {
		return
	}
	var req types.UpdatePasswordRequest
	if !decodeAccountRequest(w, r, &req) {
		return
	}
	if err := s.userService.UpdatePassword(r.Context(), callerID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// handleDeleteAccount removes the caller's own account.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.accountOwner(w, r)
	if !ok {
		return
	}
	if err := s.userService.Delete(r.Context(), callerID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("account deleted", "user_id", callerID)
	w.WriteHeader(http.StatusNoContent)
}

// accountOwner returns the caller when the {id} path value is their own account.
func (s *Server) accountOwner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	callerID, err := authmw.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	if r.PathValue("id") != callerID.String() {
		writeError(w, http.StatusForbidden, "Forbidden")
		return uuid.Nil, false
	}
	return callerID, true
}
