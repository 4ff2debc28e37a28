package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/assessor"
	"github.com/jonathan/visa-navigator/internal/llm"
	"github.com/jonathan/visa-navigator/internal/metrics"
	authmw "github.com/jonathan/visa-navigator/internal/server/middleware"
	"github.com/jonathan/visa-navigator/internal/sessions"
	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/jonathan/visa-navigator/internal/wizard"
)

// errSessionDiscarded is returned when a session is deleted while a request
// on it is still running.
var errSessionDiscarded = errors.New("wizard session was discarded")

// CreateSessionRequest starts a wizard for a catalog route.
type CreateSessionRequest struct {
	RouteID     string            `json:"routeId"`
	UserProfile types.UserProfile `json:"userProfile,omitempty"`
}

// AnswerRequest records one answer.
type AnswerRequest struct {
	QuestionID string            `json:"questionId"`
	Answer     types.AnswerValue `json:"answer"`
}

// JumpRequest moves to an active question by index.
type JumpRequest struct {
	Index int `json:"index"`
}

type failureView struct {
	Kind        assessment.Kind `json:"kind"`
	Message     string          `json:"message"`
	UserMessage string          `json:"userMessage"`
	Retryable   bool            `json:"retryable"`
}

type sessionView struct {
	ID         uuid.UUID                 `json:"id"`
	RouteID    string                    `json:"routeId"`
	Phase      wizard.Phase              `json:"phase"`
	Index      int                       `json:"index"`
	Question   *types.Question           `json:"question,omitempty"`
	Active     []types.Question          `json:"active"`
	Answers    []types.Answer            `json:"answers"`
	Progress   float64                   `json:"progress"`
	Estimate   int                       `json:"estimate"`
	Validation *wizard.ValidationError   `json:"validation,omitempty"`
	Failure    *failureView              `json:"failure,omitempty"`
	Result     *types.AssessmentResponse `json:"result,omitempty"`
}

func newSessionView(id uuid.UUID, st wizard.State) sessionView {
	v := sessionView{
		ID:         id,
		RouteID:    st.Route.ID,
		Phase:      st.Phase,
		Index:      st.Index,
		Active:     st.Active(),
		Answers:    st.Answers.List(),
		Progress:   st.Progress(),
		Estimate:   st.Estimate(),
		Validation: st.Validation,
		Result:     st.Result,
	}
	if q, ok := st.Current(); ok {
		v.Question = &q
	}
	if st.Failure != nil {
		v.Failure = &failureView{
			Kind:        st.Failure.Kind,
			Message:     st.Failure.Message,
			UserMessage: st.Failure.UserMessage(),
			Retryable:   st.Failure.Retryable(),
		}
	}
	return v
}

// inflightSession is a controller with a submission running on this instance.
type inflightSession struct {
	ctrl  *wizard.Controller
	owner uuid.UUID
}

// sessionAction applies one wizard operation.
type sessionAction func(ctx context.Context, c *wizard.Controller) wizard.State

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	route, ok := s.catalog.Get(req.RouteID)
	if !ok {
		s.writeServiceError(w, r, &ErrRouteNotFound{RouteID: req.RouteID})
		return
	}

	now := time.Now().UTC()
	rec := &sessions.Record{
		ID:        uuid.New(),
		UserID:    callerID(r),
		Snapshot:  wizard.NewState(route, req.UserProfile).Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(r.Context(), rec); err != nil {
		s.writeServiceError(w, r, fmt.Errorf("failed to save session: %w", err))
		return
	}
	s.reportActiveSessions()

	st, err := rec.Snapshot.State()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("wizard session created", "session_id", rec.ID, "route", route.ID, "anonymous", rec.UserID == uuid.Nil)
	writeJSON(w, http.StatusCreated, newSessionView(rec.ID, st))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	caller := callerID(r)
	if e, ok := s.inflight.Load(id); ok {
		in := e.(*inflightSession)
		if canAccess(in.owner, caller) {
			writeJSON(w, http.StatusOK, newSessionView(id, in.ctrl.State()))
			return
		}
	}

	rec, err := s.loadSession(r.Context(), id, caller)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	st, err := rec.Snapshot.State()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(id, st))
}

// handleDiscardSession abandons a session. A submission in flight is
// cancelled and its result dropped.
func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	caller := callerID(r)

	if e, ok := s.inflight.Load(id); ok {
		in := e.(*inflightSession)
		if !canAccess(in.owner, caller) {
			s.writeSessionError(w, r, &ErrSessionNotFound{SessionID: id.String()})
			return
		}
		in.ctrl.Discard()
	}

	mu := s.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.loadSession(r.Context(), id, caller); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, fmt.Errorf("failed to delete session: %w", err))
		return
	}
	s.sessionLocks.Delete(id)
	s.reportActiveSessions()

	s.logger.Info("wizard session discarded", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.QuestionID == "" {
		s.writeServiceError(w, r, &ErrValidation{Field: "questionId", Message: "required"})
		return
	}
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var rejected error
	st, status, err := s.applySession(r, id, false, func(_ context.Context, c *wizard.Controller) wizard.State {
		current := c.State()
		if rejected = current.Route.CheckAnswer(req.QuestionID, req.Answer); rejected != nil {
			return current
		}
		return c.Answer(req.QuestionID, req.Answer)
	})
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	if rejected != nil {
		s.writeServiceError(w, r, answerValidation(rejected))
		return
	}
	writeJSON(w, status, newSessionView(id, st))
}

// answerValidation reports an answer that does not fit its question.
func answerValidation(err error) *ErrValidation {
	var answerErr *types.AnswerError
	if errors.As(err, &answerErr) {
		return &ErrValidation{Field: "answer." + answerErr.QuestionID, Message: answerErr.Message}
	}
	return &ErrValidation{Field: "answer", Message: err.Error()}
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, true, func(ctx context.Context, c *wizard.Controller) wizard.State {
		return c.Next(ctx)
	})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, false, func(_ context.Context, c *wizard.Controller) wizard.State {
		return c.Previous()
	})
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req JumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.respondSession(w, r, false, func(_ context.Context, c *wizard.Controller) wizard.State {
		return c.JumpTo(req.Index)
	})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, true, func(ctx context.Context, c *wizard.Controller) wizard.State {
		return c.Retry(ctx)
	})
}

// handleNextStream is Next with every intermediate state sent as an SSE
// "state" event, so clients can show the submitting phase as it happens.
func (s *Server) handleNextStream(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	stream, err := newSessionStream(w, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	states := make(chan wizard.State, 16)
	observer := wizard.WithObserver(func(_ wizard.Event, _, after wizard.State) {
		select {
		case states <- after:
		default:
		}
	})

	type outcome struct {
		state wizard.State
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		st, _, err := s.applySession(r, id, true, func(ctx context.Context, c *wizard.Controller) wizard.State {
			return c.Next(ctx)
		}, observer)
		done <- outcome{state: st, err: err}
	}()

	for {
		select {
		case st := <-states:
			if err := stream.State(newSessionView(id, st)); err != nil {
				s.logger.Debug("session stream closed", "session_id", id, "error", err)
			}
		case out := <-done:
			for drained := false; !drained; {
				select {
				case st := <-states:
					_ = stream.State(newSessionView(id, st))
				default:
					drained = true
				}
			}
			if out.err != nil {
				status := HTTPStatus(out.err)
				if errors.Is(out.err, errSessionDiscarded) {
					status = http.StatusGone
				}
				msg := out.err.Error()
				if status >= http.StatusInternalServerError {
					msg = "Internal server error"
				}
				stream.Fail(msg)
				return
			}
			stream.Complete(out.state.Phase.String())
			return
		}
	}
}

// respondSession runs action against the session and writes the resulting view.
func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, submits bool, action sessionAction) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	st, status, err := s.applySession(r, id, submits, action)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, status, newSessionView(id, st))
}

// applySession loads the session, applies action and saves the result.
// While a submission runs the controller is registered as in flight; other
// requests for the session are applied to it directly and answered with 202,
// which is how a second Next observes Submitting without sending again.
func (s *Server) applySession(r *http.Request, id uuid.UUID, submits bool, action sessionAction, opts ...wizard.Option) (wizard.State, int, error) {
	ctx := r.Context()
	caller := callerID(r)

	if e, ok := s.inflight.Load(id); ok {
		in := e.(*inflightSession)
		if !canAccess(in.owner, caller) {
			return wizard.State{}, 0, &ErrSessionNotFound{SessionID: id.String()}
		}
		return action(ctx, in.ctrl), http.StatusAccepted, nil
	}

	mu := s.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.loadSession(ctx, id, caller)
	if err != nil {
		return wizard.State{}, 0, err
	}

	opts = append(opts,
		wizard.WithLogger(s.logger.With("session_id", id)),
		wizard.WithObserver(observeWizard),
	)
	ctrl, err := wizard.Restore(rec.Snapshot, assessorSubmitter{assessor: s.assessor, userID: rec.UserID}, opts...)
	if err != nil {
		return wizard.State{}, 0, fmt.Errorf("failed to restore session %s: %w", id, err)
	}
	before := ctrl.State()

	if submits {
		s.inflight.Store(id, &inflightSession{ctrl: ctrl, owner: rec.UserID})
	}
	action(ctx, ctrl)
	if submits {
		s.inflight.Delete(id)
	}

	if ctrl.Discarded() {
		return wizard.State{}, 0, errSessionDiscarded
	}

	st := ctrl.State()
	if before.Phase != wizard.PhaseCompleted && st.Phase == wizard.PhaseCompleted {
		s.recordAssessment(ctx, rec.UserID, &types.AssessmentRequest{
			VisaRoute:   st.Route,
			Answers:     st.Answers.List(),
			UserProfile: st.Profile,
		}, st.Result)
	}

	rec.Snapshot = st.Snapshot()
	rec.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, rec); err != nil {
		return wizard.State{}, 0, fmt.Errorf("failed to save session: %w", err)
	}
	return st, http.StatusOK, nil
}

// loadSession fetches a session the caller may use. A signed-in caller
// claims an anonymous session; sessions owned by someone else look missing.
func (s *Server) loadSession(ctx context.Context, id, caller uuid.UUID) (*sessions.Record, error) {
	rec, err := s.sessions.Get(ctx, id)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, &ErrSessionNotFound{SessionID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !canAccess(rec.UserID, caller) {
		return nil, &ErrSessionNotFound{SessionID: id.String()}
	}
	if rec.UserID == uuid.Nil && caller != uuid.Nil {
		rec.UserID = caller
	}
	return rec, nil
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, r, &ErrSessionNotFound{SessionID: r.PathValue("id")})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) sessionLock(id uuid.UUID) *sync.Mutex {
	mu, _ := s.sessionLocks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errSessionDiscarded) {
		writeError(w, http.StatusGone, "Session was discarded")
		return
	}
	s.writeServiceError(w, r, err)
}

func canAccess(owner, caller uuid.UUID) bool {
	return owner == uuid.Nil || owner == caller
}

// callerID returns the authenticated user, or uuid.Nil for anonymous requests.
func callerID(r *http.Request) uuid.UUID {
	id, err := authmw.GetUserID(r)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func observeWizard(ev wizard.Event, before, after wizard.State) {
	metrics.ObserveWizardEvent(ev.Name(), after.Phase.String())
	if after.Validation != nil && after.Validation != before.Validation {
		metrics.ObserveValidationBlock(after.Route.ID)
	}
}

// assessorSubmitter runs wizard submissions in-process and classifies
// failures the way the remote assessment client does.
type assessorSubmitter struct {
	assessor Assessor
	userID   uuid.UUID
}

func (a assessorSubmitter) Submit(ctx context.Context, req *types.AssessmentRequest) (resp *types.AssessmentResponse, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if e := assessment.AsError(err); e != nil {
			outcome = string(e.Kind)
		}
		metrics.ObserveSubmission(req.VisaRoute.ID, outcome, time.Since(start).Seconds())
	}()

	if a.userID == uuid.Nil {
		return nil, &assessment.Error{Kind: assessment.KindAuthentication, Message: "sign in to get your assessment", StatusCode: http.StatusUnauthorized}
	}

	resp, err = a.assessor.Assess(ctx, req)
	if err == nil {
		return resp, nil
	}

	status, message := assessFailure(err)
	kind := assessment.KindService
	var outErr *assessor.OutputError
	var invalid *llm.InvalidResponseError
	switch {
	case errors.Is(err, context.Canceled), status == http.StatusGatewayTimeout:
		kind = assessment.KindNetwork
	case errors.As(err, &outErr), errors.As(err, &invalid):
		kind = assessment.KindMalformedResponse
	}
	return nil, &assessment.Error{Kind: kind, Message: message, StatusCode: status, Cause: err}
}
