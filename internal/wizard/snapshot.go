package wizard

import (
	"fmt"

	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/types"
)

// InterruptedMessage is the failure recorded when a snapshot taken mid-submission
// is restored.
const InterruptedMessage = "submission interrupted"

// Snapshot is the serialisable form of a State.
type Snapshot struct {
	Route      *types.VisaRoute          `json:"route"`
	Profile    types.UserProfile         `json:"userProfile,omitempty"`
	Phase      Phase                     `json:"phase"`
	Index      int                       `json:"index"`
	Answers    []types.Answer            `json:"answers"`
	Result     *types.AssessmentResponse `json:"result,omitempty"`
	Failure    *assessment.Error         `json:"failure,omitempty"`
	Validation *ValidationError          `json:"validation,omitempty"`
	Attempt    int                       `json:"attempt"`
}

// Snapshot captures s.
func (s State) Snapshot() Snapshot {
	return Snapshot{
		Route:      s.Route,
		Profile:    s.Profile,
		Phase:      s.Phase,
		Index:      s.Index,
		Answers:    s.Answers.List(),
		Result:     s.Result,
		Failure:    s.Failure,
		Validation: s.Validation,
		Attempt:    s.Attempt,
	}
}

// State rebuilds a State from the snapshot. A snapshot taken while a
// submission was in flight cannot resume it and restores as a retryable
// network failure. Answers the route no longer accepts are dropped.
func (snap Snapshot) State() (State, error) {
	if snap.Route == nil {
		return State{}, fmt.Errorf("snapshot has no route")
	}
	answers := questionnaire.NewAnswers()
	for _, a := range snap.Answers {
		if snap.Route.CheckAnswer(a.QuestionID, a.Answer) == nil {
			answers.Upsert(a.QuestionID, a.Answer)
		}
	}
	s := State{
		Route:      snap.Route,
		Profile:    snap.Profile,
		Phase:      snap.Phase,
		Index:      snap.Index,
		Answers:    answers,
		Result:     snap.Result,
		Failure:    snap.Failure,
		Validation: snap.Validation,
		Attempt:    snap.Attempt,
	}
	switch s.Phase {
	case PhaseSubmitting:
		s.Phase = PhaseFailed
		s.Failure = &assessment.Error{Kind: assessment.KindNetwork, Message: InterruptedMessage}
	case PhaseCompleted:
		if !s.Result.Succeeded() {
			return State{}, fmt.Errorf("completed snapshot has no successful result")
		}
	case PhaseFailed:
		if s.Failure == nil {
			s.Failure = &assessment.Error{Kind: assessment.KindService, Message: "assessment failed"}
		}
	}
	s.Index = clampIndex(s.Index, len(s.Active()))
	return s, nil
}

// Snapshot captures the controller's current state.
func (c *Controller) Snapshot() Snapshot {
	return c.State().Snapshot()
}

// Restore creates a controller from a snapshot.
func Restore(snap Snapshot, submitter Submitter, opts ...Option) (*Controller, error) {
	s, err := snap.State()
	if err != nil {
		return nil, err
	}
	return newController(s, submitter, opts...), nil
}
