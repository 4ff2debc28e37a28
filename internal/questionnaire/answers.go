// Package questionnaire implements the question filter, answer store and
// heuristic score estimator that drive the eligibility wizard.
package questionnaire

import (
	"slices"

	"github.com/jonathan/visa-navigator/internal/types"
)

// Answers is an ordered collection of answers keyed by question id.
// Upserting an id removes its previous entry and appends the new one, so the
// collection never holds two entries for the same question.
type Answers struct {
	entries []types.Answer
}

// NewAnswers builds a store from existing entries, applying upsert semantics
// in order.
func NewAnswers(entries ...types.Answer) *Answers {
	a := &Answers{}
	for _, e := range entries {
		a.Upsert(e.QuestionID, e.Answer)
	}
	return a
}

// Upsert replaces any existing answer for id and appends the new value.
// An absent value removes the answer instead.
func (a *Answers) Upsert(id string, value types.AnswerValue) {
	a.entries = slices.DeleteFunc(a.entries, func(e types.Answer) bool { return e.QuestionID == id })
	if value.Kind() == types.KindAbsent {
		return
	}
	a.entries = append(a.entries, types.Answer{QuestionID: id, Answer: value})
}

// Get returns the answer for id. Missing ids return the absent value and false.
func (a *Answers) Get(id string) (types.AnswerValue, bool) {
	if a == nil {
		return types.AnswerValue{}, false
	}
	for _, e := range a.entries {
		if e.QuestionID == id {
			return e.Answer, true
		}
	}
	return types.AnswerValue{}, false
}

// Count returns the number of distinct answered questions.
func (a *Answers) Count() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

// List returns a copy of the entries in store order.
func (a *Answers) List() []types.Answer {
	if a == nil {
		return []types.Answer{}
	}
	return append([]types.Answer{}, a.entries...)
}

// Clone returns an independent copy of the store.
func (a *Answers) Clone() *Answers {
	if a == nil {
		return &Answers{}
	}
	return &Answers{entries: a.List()}
}

// values flattens the store into plain Go values for expression evaluation.
func (a *Answers) values() map[string]any {
	out := make(map[string]any, a.Count())
	if a == nil {
		return out
	}
	for _, e := range a.entries {
		out[e.QuestionID] = e.Answer.Interface()
	}
	return out
}
