package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assessmentColumns = `id, user_id, assessment_id, route_id, overall_score, eligibility_status, estimate,
	answers, assessment, action_plan, ukvi_application_url, created_at`

func scanAssessment(row pgx.Row) (*AssessmentRecord, error) {
	var a AssessmentRecord
	err := row.Scan(&a.ID, &a.UserID, &a.AssessmentID, &a.RouteID, &a.OverallScore, &a.EligibilityStatus,
		&a.Estimate, &a.Answers, &a.Assessment, &a.ActionPlan, &a.UKVIApplicationURL, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAssessment stores a completed assessment and fills in ID and CreatedAt.
// Saving the same assessment_id twice is a no-op that returns the stored row.
func (db *DB) SaveAssessment(ctx context.Context, rec *AssessmentRecord) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO assessments (user_id, assessment_id, route_id, overall_score, eligibility_status,
		                          estimate, answers, assessment, action_plan, ukvi_application_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (assessment_id) DO UPDATE SET assessment_id = EXCLUDED.assessment_id
		 RETURNING id, created_at`,
		rec.UserID, rec.AssessmentID, rec.RouteID, rec.OverallScore, rec.EligibilityStatus,
		rec.Estimate, rec.Answers, rec.Assessment, nullableJSON(rec.ActionPlan), rec.UKVIApplicationURL,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save assessment %s: %w", rec.AssessmentID, err)
	}
	return nil
}

// GetAssessment retrieves one of a user's assessments by its assessment id.
// Returns nil, nil when not found or owned by someone else.
func (db *DB) GetAssessment(ctx context.Context, userID uuid.UUID, assessmentID string) (*AssessmentRecord, error) {
	rec, err := scanAssessment(db.pool.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE user_id = $1 AND assessment_id = $2`,
		userID, assessmentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return rec, nil
}

// AssessmentFilters holds optional filters for listing assessments
type AssessmentFilters struct {
	RouteID string
	Limit   int
}

// ListAssessments retrieves a user's assessments, newest first
func (db *DB) ListAssessments(ctx context.Context, userID uuid.UUID, filters AssessmentFilters) ([]AssessmentRecord, error) {
	if filters.Limit <= 0 {
		filters.Limit = DefaultListLimit
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE user_id = $1`
	args := []any{userID}
	argNum := 2

	if filters.RouteID != "" {
		query += fmt.Sprintf(" AND route_id = $%d", argNum)
		args = append(args, filters.RouteID)
		argNum++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	records := []AssessmentRecord{}
	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return records, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
