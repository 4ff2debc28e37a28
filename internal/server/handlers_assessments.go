package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/assessor"
	"github.com/jonathan/visa-navigator/internal/catalog"
	"github.com/jonathan/visa-navigator/internal/db"
	"github.com/jonathan/visa-navigator/internal/llm"
	"github.com/jonathan/visa-navigator/internal/questionnaire"
	authmw "github.com/jonathan/visa-navigator/internal/server/middleware"
	"github.com/jonathan/visa-navigator/internal/types"
)

// handleAssess is the AI assessment endpoint. Every failure is answered with
// {"success": false, "error": ...}.
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	userID, err := authmw.GetUserID(r)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req types.AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	route, err := s.resolveRoute(req.VisaRoute)
	if err != nil {
		writeFailure(w, HTTPStatus(err), err.Error())
		return
	}
	req.VisaRoute = route

	resp, err := s.assessor.Assess(r.Context(), &req)
	if err != nil {
		status, message := assessFailure(err)
		s.logger.Warn("assessment failed", "route", route.ID, "user_id", userID, "status", status, "error", err)
		writeFailure(w, status, message)
		return
	}

	s.recordAssessment(r.Context(), userID, &req, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	userID, err := authmw.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	filters := db.AssessmentFilters{RouteID: r.URL.Query().Get("route_id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			s.writeServiceError(w, r, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		filters.Limit = limit
	}

	records, err := s.db.ListAssessments(r.Context(), userID, filters)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []db.AssessmentRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": records, "count": len(records)})
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	userID, err := authmw.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := r.PathValue("assessment_id")
	rec, err := s.db.GetAssessment(r.Context(), userID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if rec == nil {
		s.writeServiceError(w, r, &ErrAssessmentNotFound{AssessmentID: id})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// resolveRoute prefers the catalog's copy of a known route so clients cannot
// alter its questions or weights. Unknown routes must be valid on their own.
func (s *Server) resolveRoute(route *types.VisaRoute) (*types.VisaRoute, error) {
	if route == nil {
		return nil, &ErrValidation{Field: "visaRoute", Message: "required"}
	}
	if known, ok := s.catalog.Get(route.ID); ok {
		return known, nil
	}
	if err := catalog.ValidateRoute(route); err != nil {
		return nil, &ErrValidation{Field: "visaRoute", Message: err.Error()}
	}
	return route, nil
}

// recordAssessment stores a successful assessment for the user. A storage
// failure is logged; the caller still gets the result it paid for.
func (s *Server) recordAssessment(ctx context.Context, userID uuid.UUID, req *types.AssessmentRequest, resp *types.AssessmentResponse) {
	if userID == uuid.Nil || !resp.Succeeded() || resp.Assessment == nil {
		return
	}

	answers := questionnaire.NewAnswers(req.Answers...)
	active := questionnaire.Active(req.VisaRoute, answers)

	answersJSON, err := json.Marshal(answers.List())
	if err != nil {
		s.logger.Error("failed to encode answers", "error", err)
		return
	}
	assessmentJSON, err := json.Marshal(resp.Assessment)
	if err != nil {
		s.logger.Error("failed to encode assessment", "error", err)
		return
	}

	rec := &db.AssessmentRecord{
		UserID:             userID,
		AssessmentID:       resp.AssessmentID,
		RouteID:            req.VisaRoute.ID,
		OverallScore:       resp.Assessment.OverallScore,
		EligibilityStatus:  resp.Assessment.EligibilityStatus,
		Estimate:           questionnaire.EstimateScore(active, answers),
		Answers:            answersJSON,
		Assessment:         assessmentJSON,
		ActionPlan:         resp.ActionPlan,
		UKVIApplicationURL: resp.UKVIApplicationURL,
	}
	if err := s.db.SaveAssessment(ctx, rec); err != nil {
		s.logger.Error("failed to store assessment", "assessment_id", resp.AssessmentID, "user_id", userID, "error", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.AssessmentFailure{Success: false, Error: message})
}

// assessFailure maps an assessor error to a status and a client-safe message.
func assessFailure(err error) (int, string) {
	var outErr *assessor.OutputError
	var invalid *llm.InvalidResponseError
	switch {
	case errors.Is(err, assessor.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The assessment took too long. Please try again."
	case llm.IsRateLimited(err):
		return http.StatusServiceUnavailable, "The assessment service is busy. Please try again shortly."
	case errors.As(err, &outErr), errors.As(err, &invalid):
		return http.StatusBadGateway, "The assessment could not be generated. Please try again."
	default:
		return http.StatusBadGateway, "The assessment service is unavailable. Please try again."
	}
}
