package types

import (
	"encoding/json"
)

// UserProfile is passed through to the assessment service unchanged.
type UserProfile = json.RawMessage

// AssessmentRequest is the body sent to the AI assessment endpoint.
type AssessmentRequest struct {
	VisaRoute   *VisaRoute  `json:"visaRoute" validate:"required"`
	Answers     []Answer    `json:"answers" validate:"dive"`
	UserProfile UserProfile `json:"userProfile,omitempty"`
}

// Validate validates the AssessmentRequest using the validator.
func (r *AssessmentRequest) Validate() error {
	return validate.Struct(r)
}

// Assessment is the authoritative eligibility result computed by the AI service.
// It is distinct from the client-side estimate and must not be confused with it.
type Assessment struct {
	OverallScore      float64  `json:"overallScore"`
	EligibilityStatus string   `json:"eligibilityStatus"`
	Summary           string   `json:"summary,omitempty"`
	Strengths         []string `json:"strengths,omitempty"`
	Gaps              []string `json:"gaps,omitempty"`
	MissingDocuments  []string `json:"missingDocuments,omitempty"`
}

// ActionStep is one item of a generated action plan.
type ActionStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
	Timeline    string `json:"timeline,omitempty"`
}

// AssessmentResponse is the success payload of the assessment endpoint.
// Success and Assessment are pointers so a missing field can be told apart
// from a zero value when the body is validated.
type AssessmentResponse struct {
	Success            *bool           `json:"success" validate:"required"`
	Assessment         *Assessment     `json:"assessment" validate:"required"`
	ActionPlan         json.RawMessage `json:"actionPlan,omitempty"`
	AssessmentID       string          `json:"assessmentId"`
	UKVIApplicationURL string          `json:"ukviApplicationUrl"`
	Timestamp          string          `json:"timestamp"`
	Error              string          `json:"error,omitempty"`
}

// Succeeded reports whether the payload carries success === true.
func (r *AssessmentResponse) Succeeded() bool {
	return r != nil && r.Success != nil && *r.Success
}

// AssessmentFailure is the failure payload of the assessment endpoint.
type AssessmentFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
