package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/db"
)

// UserStore is the user persistence UserService needs. *db.DB satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, nu db.NewUser) (*db.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	DeleteUser(ctx context.Context, id uuid.UUID) (bool, error)
}

// AssessmentStore persists completed assessments. *db.DB satisfies it.
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, rec *db.AssessmentRecord) error
	GetAssessment(ctx context.Context, userID uuid.UUID, assessmentID string) (*db.AssessmentRecord, error)
	ListAssessments(ctx context.Context, userID uuid.UUID, filters db.AssessmentFilters) ([]db.AssessmentRecord, error)
}

// Database is everything the server reads from Postgres.
type Database interface {
	UserStore
	AssessmentStore
	Ping(ctx context.Context) error
}

var _ Database = (*db.DB)(nil)
