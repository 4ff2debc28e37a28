// Package server provides the HTTP API for the visa navigator: accounts,
// route catalog, wizard sessions, AI assessments and route guides.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonathan/visa-navigator/internal/catalog"
	"github.com/jonathan/visa-navigator/internal/config"
	"github.com/jonathan/visa-navigator/internal/guides"
	"github.com/jonathan/visa-navigator/internal/metrics"
	authmw "github.com/jonathan/visa-navigator/internal/server/middleware"
	"github.com/jonathan/visa-navigator/internal/server/ratelimit"
	"github.com/jonathan/visa-navigator/internal/sessions"
	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Assessor produces an AI assessment. *assessor.Assessor satisfies it.
type Assessor interface {
	Assess(ctx context.Context, req *types.AssessmentRequest) (*types.AssessmentResponse, error)
}

// GuideBuilder assembles route guidance. *guides.Service satisfies it.
type GuideBuilder interface {
	Build(ctx context.Context, route *types.VisaRoute) (*guides.Guide, error)
}

// Config holds server configuration
type Config struct {
	Port       int
	CORSOrigin string
}

// Deps are the collaborators the server is built from. Guides may be nil,
// in which case guide endpoints answer 503.
type Deps struct {
	DB        Database
	Catalog   *catalog.Catalog
	Assessor  Assessor
	Guides    GuideBuilder
	Sessions  sessions.Store
	JWT       *config.JWTConfig
	Passwords *config.PasswordConfig
	RateLimit *ratelimit.Config
	Logger    *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	db          Database
	catalog     *catalog.Catalog
	assessor    Assessor
	guides      GuideBuilder
	sessions    sessions.Store
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	corsOrigin  string
	logger      *slog.Logger

	// sessionLocks serialises requests per wizard session so a session has
	// at most one submission in flight on this instance.
	sessionLocks sync.Map
	// inflight holds controllers with a submission running, keyed by
	// session id.
	inflight sync.Map
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if deps.Assessor == nil {
		return nil, fmt.Errorf("assessor is required")
	}
	if deps.JWT == nil || deps.Passwords == nil {
		return nil, fmt.Errorf("jwt and password configuration are required")
	}
	if deps.Sessions == nil {
		deps.Sessions = sessions.NewMemoryStore(sessions.DefaultTTL)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	s := &Server{
		db:          deps.DB,
		catalog:     deps.Catalog,
		assessor:    deps.Assessor,
		guides:      deps.Guides,
		sessions:    deps.Sessions,
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
		corsOrigin:  cfg.CORSOrigin,
		logger:      deps.Logger,
	}

	s.jwtService = NewJWTService(deps.JWT)
	s.userService = NewUserService(deps.DB, deps.Passwords)

	requireAuth := authmw.AuthMiddleware(s.jwtService.AsTokenValidator())
	optionalAuth := authmw.OptionalAuthMiddleware(s.jwtService.AsTokenValidator())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Accounts
	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.Handle("PUT /v1/users/{id}/password", requireAuth(http.HandlerFunc(s.handleUpdatePassword)))
	mux.Handle("DELETE /v1/users/{id}", requireAuth(http.HandlerFunc(s.handleDeleteAccount)))

	// Catalog
	mux.HandleFunc("GET /v1/routes", s.handleListRoutes)
	mux.HandleFunc("GET /v1/routes/{id}", s.handleGetRoute)
	mux.HandleFunc("POST /v1/routes/{id}/estimate", s.handleEstimate)
	mux.HandleFunc("GET /v1/guides/{route_id}", s.handleGetGuide)

	// Assessments
	mux.Handle("POST /functions/v1/ai-visa-assessment", requireAuth(http.HandlerFunc(s.handleAssess)))
	mux.Handle("GET /v1/assessments", requireAuth(http.HandlerFunc(s.handleListAssessments)))
	mux.Handle("GET /v1/assessments/{assessment_id}", requireAuth(http.HandlerFunc(s.handleGetAssessment)))

	// Wizard sessions
	mux.Handle("POST /v1/sessions", optionalAuth(http.HandlerFunc(s.handleCreateSession)))
	mux.Handle("GET /v1/sessions/{id}", optionalAuth(http.HandlerFunc(s.handleGetSession)))
	mux.Handle("DELETE /v1/sessions/{id}", optionalAuth(http.HandlerFunc(s.handleDiscardSession)))
	mux.Handle("POST /v1/sessions/{id}/answers", optionalAuth(http.HandlerFunc(s.handleAnswer)))
	mux.Handle("POST /v1/sessions/{id}/next", optionalAuth(http.HandlerFunc(s.handleNext)))
	mux.Handle("POST /v1/sessions/{id}/next/stream", optionalAuth(http.HandlerFunc(s.handleNextStream)))
	mux.Handle("POST /v1/sessions/{id}/previous", optionalAuth(http.HandlerFunc(s.handlePrevious)))
	mux.Handle("POST /v1/sessions/{id}/jump", optionalAuth(http.HandlerFunc(s.handleJump)))
	mux.Handle("POST /v1/sessions/{id}/retry", optionalAuth(http.HandlerFunc(s.handleRetry)))

	var h http.Handler = s.withMetrics(mux)
	h = s.withRateLimit(h)
	h = s.withCORS(h)
	h = s.withLogging(h)
	h = middleware.Recoverer(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // AI assessments can take a while
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if sweeper, ok := s.sessions.(interface{ Sweep() int }); ok {
		go s.sweepSessions(ctx, sweeper)
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.Close()
	s.logger.Info("server stopped")
	return nil
}

// Close releases background resources. The database is owned by the caller.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

func (s *Server) sweepSessions(ctx context.Context, sweeper interface{ Sweep() int }) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sweeper.Sweep(); n > 0 {
				s.logger.Debug("expired wizard sessions removed", "count", n)
			}
			s.reportActiveSessions()
		}
	}
}

func (s *Server) reportActiveSessions() {
	if counter, ok := s.sessions.(interface{ Len() int }); ok {
		metrics.SetActiveSessions(counter.Len())
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, apikey, x-client-info")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			metrics.ObserveRateLimited(info.Class)
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging writes one structured access log line per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

// withMetrics records request latency by matched route pattern. It must wrap
// the mux directly so the pattern set during routing is visible here.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveRequest(r.Method, pattern, strconv.Itoa(status), time.Since(start).Seconds())
	})
}

// handleHealth reports whether the database is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes an error JSON response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps err to a status. Server-side failures are logged
// and hidden behind a generic message.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
// RealIP has already replaced RemoteAddr with the forwarded address.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"success":   false,
		"error":     "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	writeJSON(w, http.StatusTooManyRequests, response)
}
