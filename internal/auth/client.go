// Package auth is the applicant-side session client. It signs users in
// against the navigator server and supplies the bearer token used by
// assessment submissions.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/types"
)

const (
	registerPath = "/v1/auth/register"
	loginPath    = "/v1/auth/login"

	defaultTimeout = 15 * time.Second
)

// Result is the outcome of a sign-in or sign-up attempt.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Session describes the signed-in user.
type Session struct {
	Email     string
	User      *types.User
	Token     string
	ExpiresAt time.Time
}

// Client holds at most one session at a time and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	session *Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) Result {
	req := types.LoginRequest{Email: email, Password: password}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return Result{Error: "Please enter a valid email and password."}
	}
	return c.authenticate(ctx, loginPath, req.Email, req)
}

// SignUp creates an account and signs the new user in.
func (c *Client) SignUp(ctx context.Context, name, email, password, nationality string) Result {
	req := types.CreateUserRequest{Name: name, Email: email, Password: password, Nationality: nationality}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return Result{Error: "Please provide your name, a valid email and a password of at least 8 characters."}
	}
	return c.authenticate(ctx, registerPath, req.Email, req)
}

// SignOut forgets the current session.
func (c *Client) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

// SetToken restores a previously saved token, for example from the local store.
func (c *Client) SetToken(email, token string) error {
	exp, err := tokenExpiry(token)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &Session{Email: email, Token: token, ExpiresAt: exp}
	return nil
}

// Session returns a copy of the current session, or nil when signed out.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Token implements assessment.TokenSource. An expired token is reported as
// an authentication failure so the caller can prompt for a new sign-in.
func (c *Client) Token(context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.Token == "" {
		return "", &assessment.Error{Kind: assessment.KindAuthentication, Message: "not signed in"}
	}
	if !c.session.ExpiresAt.IsZero() && !c.now().Before(c.session.ExpiresAt) {
		return "", &assessment.Error{Kind: assessment.KindAuthentication, Message: "session expired"}
	}
	return c.session.Token, nil
}

func (c *Client) authenticate(ctx context.Context, path, email string, payload any) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Error: "Could not encode request."}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{Error: "Could not create request."}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("auth request failed", "path", path, "error", err)
		return Result{Error: "Could not reach the server. Check your connection and try again."}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Error: "Could not read the server response."}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Result{Error: errorMessage(raw, resp.StatusCode)}
	}

	var login types.LoginResponse
	if err := json.Unmarshal(raw, &login); err != nil || login.Token == "" {
		return Result{Error: "The server returned an unexpected response."}
	}

	exp, err := tokenExpiry(login.Token)
	if err != nil {
		c.logger.Warn("server issued unreadable token", "error", err)
		return Result{Error: "The server returned an unexpected response."}
	}

	c.mu.Lock()
	c.session = &Session{Email: email, User: login.User, Token: login.Token, ExpiresAt: exp}
	c.mu.Unlock()

	c.logger.Info("signed in", "email", email)
	return Result{Success: true}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server verifies it on every request.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

func errorMessage(raw []byte, status int) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	switch status {
	case http.StatusUnauthorized:
		return "Invalid email or password."
	case http.StatusConflict:
		return "An account with this email already exists."
	default:
		return fmt.Sprintf("Request failed (status %d).", status)
	}
}
