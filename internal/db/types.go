package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Nationality  string    `json:"nationality,omitempty"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never serialize to JSON
	PasswordSet  bool      `json:"password_set" db:"password_set"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssessmentRecord is a completed AI assessment stored for a user.
type AssessmentRecord struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	AssessmentID       string          `json:"assessment_id"`
	RouteID            string          `json:"route_id"`
	OverallScore       float64         `json:"overall_score"`
	EligibilityStatus  string          `json:"eligibility_status"`
	Estimate           int             `json:"estimate"`
	Answers            json.RawMessage `json:"answers"`
	Assessment         json.RawMessage `json:"assessment"`
	ActionPlan         json.RawMessage `json:"action_plan,omitempty"`
	UKVIApplicationURL string          `json:"ukvi_application_url"`
	CreatedAt          time.Time       `json:"created_at"`
}

// DefaultListLimit bounds list queries when the caller passes 0.
const DefaultListLimit = 50
