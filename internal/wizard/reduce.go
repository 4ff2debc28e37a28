package wizard

import (
	"errors"

	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/types"
)

// Reduce applies ev to s and returns the next state plus an optional command.
// Events that do not apply to the current phase leave the state unchanged.
func Reduce(s State, ev Event) (State, Command) {
	switch e := ev.(type) {
	case AnswerGiven:
		return answer(s, e), nil
	case Next:
		return next(s)
	case Previous:
		return previous(s), nil
	case JumpTo:
		return jump(s, e.Index), nil
	case Retry:
		if s.Phase != PhaseFailed {
			return s, nil
		}
		return submit(s)
	case SubmitSucceeded:
		return succeeded(s, e), nil
	case SubmitFailed:
		return failed(s, e), nil
	default:
		return s, nil
	}
}

// editable reports whether user edits are accepted. A failed submission keeps
// progress and lets the user go back to answering.
func editable(s State) bool {
	return s.Phase == PhaseAnswering || s.Phase == PhaseFailed
}

func answer(s State, e AnswerGiven) State {
	if !editable(s) || e.QuestionID == "" {
		return s
	}
	if err := s.Route.CheckAnswer(e.QuestionID, e.Value); err != nil {
		var answerErr *types.AnswerError
		msg := err.Error()
		if errors.As(err, &answerErr) {
			msg = answerErr.Message
		}
		s.Validation = &ValidationError{QuestionID: e.QuestionID, Message: msg}
		return s
	}

	before := s.Active()
	currentID := ""
	if s.Index >= 0 && s.Index < len(before) {
		currentID = before[s.Index].ID
	}

	s.Answers = s.Answers.Clone()
	s.Answers.Upsert(e.QuestionID, e.Value)
	s.Phase = PhaseAnswering
	s.Failure = nil
	if s.Validation != nil && s.Validation.QuestionID == e.QuestionID {
		s.Validation = nil
	}

	after := s.Active()
	selector := ""
	if s.Route != nil && s.Route.Branching != nil {
		selector = s.Route.Branching.SelectorID
	}

	switch {
	case selector != "" && e.QuestionID == selector && currentID == selector && e.Value.IsPresent():
		// The selector reshapes the active set; move to the first question after it.
		s.Index = questionnaire.IndexOf(after, selector) + 1
	case currentID != "":
		if i := questionnaire.IndexOf(after, currentID); i >= 0 {
			s.Index = i
		}
	}
	s.Index = clampIndex(s.Index, len(after))
	return s
}

func next(s State) (State, Command) {
	if s.Phase != PhaseAnswering {
		return s, nil
	}
	active := s.Active()
	if len(active) == 0 {
		return submit(s)
	}

	s.Index = clampIndex(s.Index, len(active))
	q := active[s.Index]
	if q.Required {
		if v, _ := s.Answers.Get(q.ID); !v.IsPresent() {
			s.Validation = &ValidationError{QuestionID: q.ID, Message: RequiredMessage}
			return s, nil
		}
	}
	s.Validation = nil

	if s.Index+1 < len(active) {
		s.Index++
		return s, nil
	}
	return submit(s)
}

func previous(s State) State {
	if !editable(s) {
		return s
	}
	s.Phase = PhaseAnswering
	s.Failure = nil
	s.Validation = nil
	if s.Index > 0 {
		s.Index--
	}
	s.Index = clampIndex(s.Index, len(s.Active()))
	return s
}

func jump(s State, index int) State {
	if !editable(s) {
		return s
	}
	if index < 0 || index >= len(s.Active()) {
		return s
	}
	s.Phase = PhaseAnswering
	s.Failure = nil
	s.Validation = nil
	s.Index = index
	return s
}

func submit(s State) (State, Command) {
	s.Phase = PhaseSubmitting
	s.Failure = nil
	s.Validation = nil
	s.Result = nil
	s.Attempt++
	return s, SubmitCommand{Attempt: s.Attempt, Request: s.request()}
}

func succeeded(s State, e SubmitSucceeded) State {
	if s.Phase != PhaseSubmitting || e.Attempt != s.Attempt {
		return s
	}
	if !e.Response.Succeeded() || e.Response.Assessment == nil {
		s.Phase = PhaseFailed
		s.Failure = &assessment.Error{Kind: assessment.KindMalformedResponse, Message: "response is missing success or assessment"}
		return s
	}
	s.Phase = PhaseCompleted
	s.Result = e.Response
	return s
}

func failed(s State, e SubmitFailed) State {
	if s.Phase != PhaseSubmitting || e.Attempt != s.Attempt {
		return s
	}
	s.Phase = PhaseFailed
	s.Failure = e.Err
	if s.Failure == nil {
		s.Failure = &assessment.Error{Kind: assessment.KindService, Message: "assessment failed"}
	}
	return s
}

// clampIndex keeps i within [0, n-1], or 0 when n is 0.
func clampIndex(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
