// Package types provides type definitions for structured data used throughout the visa-navigator system.
package types

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// QuestionType determines the input widget and the shape of a valid answer.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionBoolean  QuestionType = "boolean"
	QuestionNumber   QuestionType = "number"
	QuestionText     QuestionType = "text"
)

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionSingle || t == QuestionMultiple
}

// Category groups visa routes.
type Category string

const (
	CategoryWork       Category = "Work"
	CategoryEducation  Category = "Education"
	CategoryFamily     Category = "Family"
	CategoryVisit      Category = "Visit"
	CategorySettlement Category = "Settlement"
)

// Difficulty is the editorial difficulty rating of a route.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// EndorsingBody identifies the organisation endorsing a Global Talent applicant.
// The zero value means no body has been selected.
type EndorsingBody string

const (
	EndorsingBodyNone                    EndorsingBody = ""
	EndorsingBodyTechNation              EndorsingBody = "tech-nation"
	EndorsingBodyArtsCouncil             EndorsingBody = "arts-council"
	EndorsingBodyBritishAcademy          EndorsingBody = "british-academy"
	EndorsingBodyRoyalSociety            EndorsingBody = "royal-society"
	EndorsingBodyRoyalAcademyEngineering EndorsingBody = "royal-academy-engineering"
	EndorsingBodyUKRI                    EndorsingBody = "ukri"
)

var endorsingBodyPrefixes = map[EndorsingBody]string{
	EndorsingBodyTechNation:              "tech-",
	EndorsingBodyArtsCouncil:             "arts-",
	EndorsingBodyBritishAcademy:          "ba-",
	EndorsingBodyRoyalSociety:            "rs-",
	EndorsingBodyRoyalAcademyEngineering: "rae-",
	EndorsingBodyUKRI:                    "ukri-",
}

// EndorsingBodies returns every known body in authored order.
func EndorsingBodies() []EndorsingBody {
	return []EndorsingBody{
		EndorsingBodyTechNation,
		EndorsingBodyArtsCouncil,
		EndorsingBodyBritishAcademy,
		EndorsingBodyRoyalSociety,
		EndorsingBodyRoyalAcademyEngineering,
		EndorsingBodyUKRI,
	}
}

// Prefix returns the question id prefix reserved for the body, or "" for None.
func (b EndorsingBody) Prefix() string {
	return endorsingBodyPrefixes[b]
}

// Valid reports whether b is a known body (None is not a body).
func (b EndorsingBody) Valid() bool {
	_, ok := endorsingBodyPrefixes[b]
	return ok
}

// BodyForPrefix returns the body whose prefix starts id, if any.
func BodyForPrefix(id string) (EndorsingBody, bool) {
	for _, b := range EndorsingBodies() {
		if strings.HasPrefix(id, b.Prefix()) {
			return b, true
		}
	}
	return EndorsingBodyNone, false
}

// ConditionalLogic ties a question to the endorsing body chosen in another question.
type ConditionalLogic struct {
	DependsOnID   string        `json:"dependsOnId" validate:"required"`
	EndorsingBody EndorsingBody `json:"endorsingBody" validate:"required"`
}

// Question is a single wizard step.
type Question struct {
	ID               string            `json:"id" validate:"required"`
	Text             string            `json:"text" validate:"required"`
	Type             QuestionType      `json:"type" validate:"required,oneof=single multiple boolean number text"`
	Options          []string          `json:"options,omitempty"`
	Required         bool              `json:"required"`
	Weight           int               `json:"weight" validate:"gt=0"`
	HelpText         string            `json:"helpText,omitempty"`
	ConditionalLogic *ConditionalLogic `json:"conditionalLogic,omitempty"`
	ShowIf           string            `json:"showIf,omitempty"`
}

// Body returns the endorsing body the question is tagged with.
func (q *Question) Body() EndorsingBody {
	if q.ConditionalLogic == nil {
		return EndorsingBodyNone
	}
	return q.ConditionalLogic.EndorsingBody
}

// AnswerError rejects a value that does not fit its question.
type AnswerError struct {
	QuestionID string
	Message    string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("answer for %s: %s", e.QuestionID, e.Message)
}

// Accepts reports whether v is a valid answer to q. The absent value always
// fits and clears the answer.
func (q *Question) Accepts(v AnswerValue) error {
	if v.Kind() == KindAbsent {
		return nil
	}
	reject := func(format string, args ...any) error {
		return &AnswerError{QuestionID: q.ID, Message: fmt.Sprintf(format, args...)}
	}

	want := map[QuestionType]ValueKind{
		QuestionSingle:   KindString,
		QuestionMultiple: KindList,
		QuestionBoolean:  KindBool,
		QuestionNumber:   KindNumber,
		QuestionText:     KindString,
	}[q.Type]
	if v.Kind() != want {
		return reject("expected a %s, got a %s", want, v.Kind())
	}

	switch q.Type {
	case QuestionSingle:
		if s, _ := v.Str(); s != "" && !slices.Contains(q.Options, s) {
			return reject("%q is not one of the options", s)
		}
	case QuestionMultiple:
		items, _ := v.List()
		seen := make(map[string]bool, len(items))
		for _, item := range items {
			if !slices.Contains(q.Options, item) {
				return reject("%q is not one of the options", item)
			}
			if seen[item] {
				return reject("%q is selected more than once", item)
			}
			seen[item] = true
		}
	case QuestionNumber:
		if n, _ := v.Number(); math.IsNaN(n) || math.IsInf(n, 0) {
			return reject("number must be finite")
		}
	}
	return nil
}

// CheckAnswer validates an answer to question id of r. The endorsement
// selector also takes a body's canonical value in place of its label.
func (r *VisaRoute) CheckAnswer(id string, v AnswerValue) error {
	if r == nil {
		return &AnswerError{QuestionID: id, Message: "unknown question"}
	}
	q, ok := r.Question(id)
	if !ok {
		return &AnswerError{QuestionID: id, Message: "unknown question"}
	}
	if r.Branching != nil && id == r.Branching.SelectorID {
		if s, ok := v.Str(); ok && slices.Contains(slices.Collect(maps.Values(r.Branching.Bodies)), EndorsingBody(s)) {
			return nil
		}
	}
	return q.Accepts(v)
}

// EndorsementBranching describes a route whose questions split by endorsing body.
// Bodies maps each option label of the selector question to exactly one body.
type EndorsementBranching struct {
	SelectorID string                   `json:"selectorId" validate:"required"`
	Bodies     map[string]EndorsingBody `json:"bodies" validate:"required,min=1"`
}

// VisaRoute is immutable reference data for one UK visa category.
type VisaRoute struct {
	ID                 string                `json:"id" validate:"required"`
	Name               string                `json:"name" validate:"required"`
	Description        string                `json:"description"`
	Category           Category              `json:"category" validate:"required,oneof=Work Education Family Visit Settlement"`
	Difficulty         Difficulty            `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	Cost               string                `json:"cost"`
	ProcessingTime     string                `json:"processingTime"`
	ReferenceURLs      []string              `json:"referenceUrls" validate:"dive,url"`
	UKVIApplicationURL string                `json:"ukviApplicationUrl" validate:"omitempty,url"`
	Requirements       []string              `json:"requirements,omitempty"`
	Branching          *EndorsementBranching `json:"branching,omitempty"`
	Questions          []Question            `json:"questions" validate:"required,min=1,dive"`
}

// Question returns the question with the given id.
func (r *VisaRoute) Question(id string) (*Question, bool) {
	for i := range r.Questions {
		if r.Questions[i].ID == id {
			return &r.Questions[i], true
		}
	}
	return nil, false
}

// IsConditional reports whether any question visibility depends on answers.
func (r *VisaRoute) IsConditional() bool {
	if r.Branching != nil {
		return true
	}
	for i := range r.Questions {
		if r.Questions[i].ShowIf != "" || r.Questions[i].ConditionalLogic != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can never mutate catalog data.
func (r *VisaRoute) Clone() *VisaRoute {
	if r == nil {
		return nil
	}
	out := *r
	out.ReferenceURLs = append([]string(nil), r.ReferenceURLs...)
	out.Requirements = append([]string(nil), r.Requirements...)
	if r.Branching != nil {
		b := EndorsementBranching{SelectorID: r.Branching.SelectorID, Bodies: make(map[string]EndorsingBody, len(r.Branching.Bodies))}
		for label, body := range r.Branching.Bodies {
			b.Bodies[label] = body
		}
		out.Branching = &b
	}
	out.Questions = make([]Question, len(r.Questions))
	for i, q := range r.Questions {
		q.Options = append([]string(nil), q.Options...)
		if q.ConditionalLogic != nil {
			cl := *q.ConditionalLogic
			q.ConditionalLogic = &cl
		}
		out.Questions[i] = q
	}
	return &out
}

// Validate validates struct tags on the route and its questions.
func (r *VisaRoute) Validate() error {
	return validate.Struct(r)
}
