// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey struct{}

// ErrNoUser is returned by GetUserID for anonymous requests.
var ErrNoUser = errors.New("user ID not found in request context")

// TokenValidator verifies a bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (UserIDGetter, error)
}

// UserIDGetter is the part of the token claims the middleware needs.
type UserIDGetter interface {
	GetUserID() uuid.UUID
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the user ID in the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return bearer(validator, false)
}

// OptionalAuthMiddleware lets requests without an Authorization header
// through anonymously. A present but invalid token is still rejected.
func OptionalAuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return bearer(validator, true)
}

func bearer(validator TokenValidator, anonymousOK bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && anonymousOK {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.GetUserID())))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="visa-navigator"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Unauthorized"})
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// GetUserID returns the authenticated user, or ErrNoUser.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	if id, ok := r.Context().Value(contextKey{}).(uuid.UUID); ok {
		return id, nil
	}
	return uuid.Nil, ErrNoUser
}
