package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonathan/visa-navigator/internal/guides"
	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/types"
)

// routeSummary is the list view of a route; questions are omitted.
type routeSummary struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Category       types.Category   `json:"category"`
	Difficulty     types.Difficulty `json:"difficulty"`
	Cost           string           `json:"cost"`
	ProcessingTime string           `json:"processingTime"`
	QuestionCount  int              `json:"questionCount"`
}

// EstimateRequest carries answers for a live estimate.
type EstimateRequest struct {
	Answers []types.Answer `json:"answers"`
}

// EstimateResponse is the active question set and heuristic score for a set
// of answers.
type EstimateResponse struct {
	RouteID         string              `json:"routeId"`
	EndorsingBody   types.EndorsingBody `json:"endorsingBody,omitempty"`
	ActiveQuestions []types.Question    `json:"activeQuestions"`
	Answered        int                 `json:"answered"`
	Estimate        int                 `json:"estimate"`
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	routes := s.catalog.List()
	if c := r.URL.Query().Get("category"); c != "" {
		routes = s.catalog.ByCategory(types.Category(c))
	}

	out := make([]routeSummary, 0, len(routes))
	for _, rt := range routes {
		out = append(out, routeSummary{
			ID:             rt.ID,
			Name:           rt.Name,
			Description:    rt.Description,
			Category:       rt.Category,
			Difficulty:     rt.Difficulty,
			Cost:           rt.Cost,
			ProcessingTime: rt.ProcessingTime,
			QuestionCount:  len(rt.Questions),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": out, "count": len(out)})
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	route, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		s.writeServiceError(w, r, &ErrRouteNotFound{RouteID: r.PathValue("id")})
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// handleEstimate filters the route's questions against the given answers and
// scores the active ones.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	route, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		s.writeServiceError(w, r, &ErrRouteNotFound{RouteID: r.PathValue("id")})
		return
	}

	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	for _, a := range req.Answers {
		if err := route.CheckAnswer(a.QuestionID, a.Answer); err != nil {
			s.writeServiceError(w, r, answerValidation(err))
			return
		}
	}

	answers := questionnaire.NewAnswers(req.Answers...)
	active := questionnaire.Active(route, answers)
	answered := 0
	for _, q := range active {
		if v, ok := answers.Get(q.ID); ok && v.IsPresent() {
			answered++
		}
	}

	writeJSON(w, http.StatusOK, EstimateResponse{
		RouteID:         route.ID,
		EndorsingBody:   questionnaire.ResolveEndorsingBody(route, answers),
		ActiveQuestions: active,
		Answered:        answered,
		Estimate:        questionnaire.EstimateScore(active, answers),
	})
}

func (s *Server) handleGetGuide(w http.ResponseWriter, r *http.Request) {
	if s.guides == nil {
		writeError(w, http.StatusServiceUnavailable, "Guides are not available")
		return
	}

	route, ok := s.catalog.Get(r.PathValue("route_id"))
	if !ok {
		s.writeServiceError(w, r, &ErrRouteNotFound{RouteID: r.PathValue("route_id")})
		return
	}

	guide, err := s.guides.Build(r.Context(), route)
	if errors.Is(err, guides.ErrNoPages) {
		s.logger.Warn("no guide pages could be fetched", "route", route.ID)
		writeError(w, http.StatusBadGateway, "Guidance pages are currently unavailable")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guide)
}
