package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultJWTIssuer is the iss claim stamped on navigator tokens.
const DefaultJWTIssuer = "visa-navigator"

// MaxPasswordBytes is the bcrypt input limit, pepper included.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned when password plus pepper exceeds MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password too long")

// JWTConfig is the signing setup for applicant tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// TTL is the lifetime of a freshly issued token.
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// NewJWTConfig reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (24) and
// JWT_ISSUER (visa-navigator).
func NewJWTConfig() (*JWTConfig, error) {
	hours, err := envInt("JWT_EXPIRATION_HOURS", 24)
	if err != nil {
		return nil, err
	}
	c := &JWTConfig{
		Secret:          os.Getenv("JWT_SECRET"),
		ExpirationHours: hours,
		Issuer:          envOr("JWT_ISSUER", DefaultJWTIssuer),
	}
	switch {
	case c.Secret == "":
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	case c.ExpirationHours < 1:
		return nil, fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return c, nil
}

// PasswordConfig controls how account passwords are hashed.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string
}

// NewPasswordConfig reads BCRYPT_COST (12, allowed 10-14) and the optional
// PASSWORD_PEPPER.
func NewPasswordConfig() (*PasswordConfig, error) {
	cost, err := envInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}
	c := &PasswordConfig{BcryptCost: cost, Pepper: os.Getenv("PASSWORD_PEPPER")}
	switch {
	case cost < 10 || cost > 14:
		return nil, fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", cost)
	case len(c.Pepper) >= MaxPasswordBytes:
		return nil, fmt.Errorf("PASSWORD_PEPPER leaves no room for the password (%d bytes)", len(c.Pepper))
	}
	return c, nil
}

// HashPassword returns the bcrypt hash of pw with the pepper appended.
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	input := []byte(pw + c.Pepper)
	if len(input) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword(input, c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether pw matches storedHash.
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(pw+c.Pepper)) == nil
}
