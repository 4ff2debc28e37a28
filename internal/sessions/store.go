// Package sessions persists wizard session snapshots between HTTP requests.
//
// Error contract: Get returns ErrNotFound for unknown or expired sessions and
// wraps infrastructure failures with context.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/wizard"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 2 * time.Hour

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Record is a stored wizard session.
type Record struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Snapshot  wizard.Snapshot `json:"snapshot"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store saves and loads session records. Every Save refreshes the TTL.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
