// Package wizard drives a user through the active questions of a visa route
// and finalises the questionnaire by submitting it for assessment.
//
// All transitions go through Reduce, a pure function of (State, Event).
// Controller wraps the reducer for concurrent callers and executes the
// submit commands it returns.
package wizard

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/types"
)

// Phase is the coarse state of the wizard.
type Phase int

const (
	PhaseAnswering Phase = iota
	PhaseSubmitting
	PhaseCompleted
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseAnswering:  "answering",
	PhaseSubmitting: "submitting",
	PhaseCompleted:  "completed",
	PhaseFailed:     "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalJSON encodes the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a phase name.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for phase, n := range phaseNames {
		if n == name {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown wizard phase %q", name)
}

// ValidationError blocks advancing past an unanswered required question or
// reports an answer that does not fit its question. It is shown inline and never leaves the wizard.
type ValidationError struct {
	QuestionID string `json:"questionId"`
	Message    string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %s: %s", e.QuestionID, e.Message)
}

// RequiredMessage is the inline message for an unanswered required question.
const RequiredMessage = "Please answer this question before continuing."

// State is a complete wizard snapshot. Treat it as a value: Reduce never
// mutates the State it is given.
type State struct {
	Route      *types.VisaRoute
	Profile    types.UserProfile
	Phase      Phase
	Index      int
	Answers    *questionnaire.Answers
	Result     *types.AssessmentResponse
	Failure    *assessment.Error
	Validation *ValidationError
	// Attempt numbers submissions. Results for any other attempt are stale.
	Attempt int
}

// NewState returns the initial state for route.
func NewState(route *types.VisaRoute, profile types.UserProfile) State {
	return State{
		Route:   route,
		Profile: profile,
		Phase:   PhaseAnswering,
		Answers: questionnaire.NewAnswers(),
	}
}

// Active returns the currently applicable questions.
func (s State) Active() []types.Question {
	return questionnaire.Active(s.Route, s.Answers)
}

// Current returns the question at Index, if any.
func (s State) Current() (types.Question, bool) {
	active := s.Active()
	if s.Index < 0 || s.Index >= len(active) {
		return types.Question{}, false
	}
	return active[s.Index], true
}

// Progress returns (Index+1)/len(active)*100, or 0 with no active questions.
func (s State) Progress() float64 {
	n := len(s.Active())
	if n == 0 {
		return 0
	}
	return float64(s.Index+1) / float64(n) * 100
}

// Estimate returns the heuristic score for the current answers. It is
// available in every phase.
func (s State) Estimate() int {
	return questionnaire.EstimateScore(s.Active(), s.Answers)
}

// AssessmentID returns the id of the completed assessment, if any.
func (s State) AssessmentID() string {
	if s.Phase != PhaseCompleted || s.Result == nil {
		return ""
	}
	return s.Result.AssessmentID
}

func (s State) request() *types.AssessmentRequest {
	return &types.AssessmentRequest{
		VisaRoute:   s.Route.Clone(),
		Answers:     s.Answers.List(),
		UserProfile: s.Profile,
	}
}
