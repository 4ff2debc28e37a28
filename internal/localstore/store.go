// Package localstore is the CLI's on-disk SQLite store: the signed-in session,
// wizard drafts and a history of received assessments.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    email      TEXT NOT NULL,
    token      TEXT NOT NULL,
    expires_at INTEGER,
    saved_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS drafts (
    route_id   TEXT PRIMARY KEY,
    snapshot   TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS assessments (
    assessment_id      TEXT PRIMARY KEY,
    route_id           TEXT NOT NULL,
    overall_score      REAL NOT NULL,
    eligibility_status TEXT NOT NULL,
    estimate           INTEGER NOT NULL,
    response           TEXT NOT NULL,
    created_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments (created_at DESC);
`

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates a Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for single-user CLI use.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultPath resolves the database file path in priority order:
// 1. VISA_AGENT_DB environment variable
// 2. $XDG_DATA_HOME/visa-navigator/visa.db
// 3. ~/.local/share/visa-navigator/visa.db
func DefaultPath() (string, error) {
	if p := os.Getenv("VISA_AGENT_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "visa-navigator", "visa.db")
	return p, ensureDir(p)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Credentials is the signed-in account.
type Credentials struct {
	Email     string
	Token     string
	ExpiresAt time.Time // zero when the token carries no expiry
	SavedAt   time.Time
}

// SaveCredentials replaces the stored session.
func (s *Store) SaveCredentials(ctx context.Context, c Credentials) error {
	var expires sql.NullInt64
	if !c.ExpiresAt.IsZero() {
		expires = sql.NullInt64{Int64: c.ExpiresAt.Unix(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, email, token, expires_at, saved_at) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET email = excluded.email, token = excluded.token,
		     expires_at = excluded.expires_at, saved_at = excluded.saved_at`,
		c.Email, c.Token, expires, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns the stored session or ErrNotFound.
func (s *Store) LoadCredentials(ctx context.Context) (*Credentials, error) {
	var (
		c       Credentials
		expires sql.NullInt64
		saved   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, token, expires_at, saved_at FROM credentials WHERE id = 1`,
	).Scan(&c.Email, &c.Token, &expires, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if expires.Valid {
		c.ExpiresAt = time.Unix(expires.Int64, 0)
	}
	c.SavedAt = time.Unix(saved, 0)
	return &c, nil
}

// ClearCredentials signs out.
func (s *Store) ClearCredentials(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// SaveDraft stores an encoded wizard snapshot for a route.
func (s *Store) SaveDraft(ctx context.Context, routeID string, snapshot []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (route_id, snapshot, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (route_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		routeID, string(snapshot), s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save draft %s: %w", routeID, err)
	}
	return nil
}

// LoadDraft returns the stored snapshot for a route or ErrNotFound.
func (s *Store) LoadDraft(ctx context.Context, routeID string) ([]byte, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM drafts WHERE route_id = ?`, routeID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", routeID, err)
	}
	return []byte(snapshot), nil
}

// DeleteDraft removes a route's draft.
func (s *Store) DeleteDraft(ctx context.Context, routeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE route_id = ?`, routeID); err != nil {
		return fmt.Errorf("delete draft %s: %w", routeID, err)
	}
	return nil
}

// AssessmentEntry is one received assessment.
type AssessmentEntry struct {
	AssessmentID      string
	RouteID           string
	OverallScore      float64
	EligibilityStatus string
	Estimate          int
	Response          []byte
	CreatedAt         time.Time
}

// SaveAssessment records an assessment. Saving the same id twice keeps the first.
func (s *Store) SaveAssessment(ctx context.Context, e AssessmentEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assessments (assessment_id, route_id, overall_score, eligibility_status, estimate, response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (assessment_id) DO NOTHING`,
		e.AssessmentID, e.RouteID, e.OverallScore, e.EligibilityStatus, e.Estimate, string(e.Response), created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save assessment %s: %w", e.AssessmentID, err)
	}
	return nil
}

// ListAssessments returns assessments newest first. limit <= 0 returns all.
func (s *Store) ListAssessments(ctx context.Context, limit int) ([]AssessmentEntry, error) {
	query := `SELECT assessment_id, route_id, overall_score, eligibility_status, estimate, response, created_at
		FROM assessments ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AssessmentEntry
	for rows.Next() {
		var (
			e        AssessmentEntry
			response string
			created  int64
		)
		if err := rows.Scan(&e.AssessmentID, &e.RouteID, &e.OverallScore, &e.EligibilityStatus, &e.Estimate, &response, &created); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		e.Response = []byte(response)
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
