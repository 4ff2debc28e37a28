package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/catalog"
	"github.com/jonathan/visa-navigator/internal/config"
	"github.com/jonathan/visa-navigator/internal/db"
	"github.com/jonathan/visa-navigator/internal/guides"
	"github.com/jonathan/visa-navigator/internal/logging"
	"github.com/jonathan/visa-navigator/internal/server/ratelimit"
	"github.com/jonathan/visa-navigator/internal/sessions"
	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDB is an in-memory Database.
type memDB struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*db.User
	assessments []db.AssessmentRecord
	pingErr     error
	saveErr     error
}

func newMemDB() *memDB {
	return &memDB{users: make(map[uuid.UUID]*db.User)}
}

func (m *memDB) Ping(context.Context) error { return m.pingErr }

func (m *memDB) CreateUser(_ context.Context, nu db.NewUser) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == nu.Email {
			return nil, db.ErrEmailTaken
		}
	}
	now := time.Now()
	u := &db.User{
		ID:           uuid.New(),
		Name:         nu.Name,
		Email:        nu.Email,
		Nationality:  nu.Nationality,
		PasswordHash: nu.PasswordHash,
		PasswordSet:  nu.PasswordHash != "",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memDB) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memDB) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDB) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	u.PasswordHash = hash
	u.PasswordSet = true
	return nil
}

func (m *memDB) DeleteUser(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	kept := m.assessments[:0]
	for _, a := range m.assessments {
		if a.UserID != id {
			kept = append(kept, a)
		}
	}
	m.assessments = kept
	return true, nil
}

func (m *memDB) SaveAssessment(_ context.Context, rec *db.AssessmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *rec
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	m.assessments = append(m.assessments, cp)
	return nil
}

func (m *memDB) GetAssessment(_ context.Context, userID uuid.UUID, assessmentID string) (*db.AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.assessments {
		if a := m.assessments[i]; a.UserID == userID && a.AssessmentID == assessmentID {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memDB) ListAssessments(_ context.Context, userID uuid.UUID, f db.AssessmentFilters) ([]db.AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.AssessmentRecord
	for i := len(m.assessments) - 1; i >= 0; i-- {
		a := m.assessments[i]
		if a.UserID != userID || (f.RouteID != "" && a.RouteID != f.RouteID) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memDB) assessmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assessments)
}

// fakeAssessor returns a fixed assessment. When block is set it waits for
// the channel to close or the context to end.
type fakeAssessor struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
	last  *types.AssessmentRequest
}

func (f *fakeAssessor) Assess(ctx context.Context, req *types.AssessmentRequest) (*types.AssessmentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	err, block := f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	ok := true
	return &types.AssessmentResponse{
		Success:            &ok,
		Assessment:         &types.Assessment{OverallScore: 72, EligibilityStatus: "likely_eligible", Summary: "Strong case"},
		AssessmentID:       fmt.Sprintf("asm-%d", f.callCount()),
		UKVIApplicationURL: "https://www.gov.uk/standard-visitor/apply-standard-visitor-visa",
		Timestamp:          "2026-03-01T12:00:00Z",
	}, nil
}

func (f *fakeAssessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAssessor) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeGuides struct {
	err error
}

func (g *fakeGuides) Build(_ context.Context, route *types.VisaRoute) (*guides.Guide, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &guides.Guide{RouteID: route.ID, RouteName: route.Name}, nil
}

func visitorRoute() *types.VisaRoute {
	return &types.VisaRoute{
		ID:         "standard-visitor",
		Name:       "Standard Visitor",
		Category:   types.CategoryVisit,
		Difficulty: types.DifficultyEasy,
		Questions: []types.Question{
			{ID: "funds", Text: "Can you support yourself during the visit?", Type: types.QuestionBoolean, Required: true, Weight: 4},
			{ID: "notes", Text: "Anything else we should know?", Type: types.QuestionText, Weight: 2},
		},
	}
}

func studentRoute() *types.VisaRoute {
	return &types.VisaRoute{
		ID:         "student",
		Name:       "Student",
		Category:   types.CategoryEducation,
		Difficulty: types.DifficultyMedium,
		Questions: []types.Question{
			{ID: "cas", Text: "Do you have a CAS?", Type: types.QuestionBoolean, Required: true, Weight: 10},
		},
	}
}

type testEnv struct {
	srv      *Server
	handler  http.Handler
	db       *memDB
	assessor *fakeAssessor
	guides   *fakeGuides
	jwt      *JWTService
}

type envOption func(*Deps)

func withRateLimit(cfg *ratelimit.Config) envOption {
	return func(d *Deps) { d.RateLimit = cfg }
}

func withoutGuides() envOption {
	return func(d *Deps) { d.Guides = nil }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cat, err := catalog.New(visitorRoute(), studentRoute())
	require.NoError(t, err)

	env := &testEnv{db: newMemDB(), assessor: &fakeAssessor{}, guides: &fakeGuides{}}
	jwtCfg := &config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 1, Issuer: config.DefaultJWTIssuer}
	deps := Deps{
		DB:        env.db,
		Catalog:   cat,
		Assessor:  env.assessor,
		Guides:    env.guides,
		Sessions:  sessions.NewMemoryStore(time.Hour),
		JWT:       jwtCfg,
		Passwords: &config.PasswordConfig{BcryptCost: 10},
		RateLimit: &ratelimit.Config{Enabled: false},
		Logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(Config{Port: 0}, deps)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	env.srv = srv
	env.handler = srv.Handler()
	env.jwt = NewJWTService(jwtCfg)
	return env
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNew_RequiresDependencies(t *testing.T) {
	cat, err := catalog.New(visitorRoute())
	require.NoError(t, err)
	full := Deps{
		DB:        newMemDB(),
		Catalog:   cat,
		Assessor:  &fakeAssessor{},
		JWT:       &config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 1},
		Passwords: &config.PasswordConfig{BcryptCost: 10},
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
		errMsg string
	}{
		{"no database", func(d *Deps) { d.DB = nil }, "database is required"},
		{"no catalog", func(d *Deps) { d.Catalog = nil }, "catalog is required"},
		{"no assessor", func(d *Deps) { d.Assessor = nil }, "assessor is required"},
		{"no jwt", func(d *Deps) { d.JWT = nil }, "jwt and password configuration are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.mutate(&deps)
			_, err := New(Config{}, deps)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	srv, err := New(Config{}, full)
	require.NoError(t, err)
	srv.Close()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])

	env.db.pingErr = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody[map[string]string](t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/v1/routes", nil, "")

	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "visa_http_request_duration_seconds")
	assert.Contains(t, body, `route="GET /v1/routes"`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/functions/v1/ai-visa-assessment", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRequestIDHeaderIsHonoured(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, withRateLimit(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/v1/routes", Method: http.MethodGet, Limit: 2, Window: time.Minute, Burst: 2},
		},
	}))

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/v1/routes", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := env.do(t, http.MethodGet, "/v1/routes", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, body["success"])

	// Other endpoint classes keep their own budget, and probes are never limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/routes/student", nil, "").Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil, "").Code)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteServiceError_HidesInternalErrors(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", nil)

	env.srv.writeServiceError(rec, req, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "pq:"))
}
