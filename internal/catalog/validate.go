package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/types"
)

// ValidationError lists every invariant a route violates.
type ValidationError struct {
	RouteID  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("route %q is invalid: %s", e.RouteID, strings.Join(e.Problems, "; "))
}

// Validate checks every route and returns all violations joined.
func (c *Catalog) Validate() error {
	var errs []error
	for _, r := range c.routes {
		if err := ValidateRoute(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateRoute checks a single route against the catalog invariants.
func ValidateRoute(r *types.VisaRoute) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := r.Validate(); err != nil {
		addf("%v", err)
	}

	seen := make(map[string]bool, len(r.Questions))
	for _, q := range r.Questions {
		if seen[q.ID] {
			addf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true

		if q.Type.HasOptions() && len(q.Options) == 0 {
			addf("question %s of type %s needs options", q.ID, q.Type)
		}
		if !q.Type.HasOptions() && len(q.Options) > 0 {
			addf("question %s of type %s must not have options", q.ID, q.Type)
		}

		body := q.Body()
		prefixed, hasPrefix := types.BodyForPrefix(q.ID)
		switch {
		case body == types.EndorsingBodyNone && hasPrefix:
			addf("untagged question %s uses the %s prefix", q.ID, prefixed.Prefix())
		case body != types.EndorsingBodyNone && !body.Valid():
			addf("question %s has unknown endorsing body %q", q.ID, body)
		case body != types.EndorsingBodyNone && !strings.HasPrefix(q.ID, body.Prefix()):
			addf("question %s is tagged %s but lacks prefix %s", q.ID, body, body.Prefix())
		}

		if q.ConditionalLogic != nil {
			if r.Branching == nil {
				addf("question %s has conditional logic but the route has no branching", q.ID)
			} else if q.ConditionalLogic.DependsOnID != r.Branching.SelectorID {
				addf("question %s depends on %s, not the selector %s", q.ID, q.ConditionalLogic.DependsOnID, r.Branching.SelectorID)
			}
		}

		if q.ShowIf != "" {
			if err := questionnaire.CompileCondition(q.ShowIf); err != nil {
				addf("question %s: %v", q.ID, err)
			}
		}
	}

	if r.Branching != nil {
		problems = append(problems, validateBranching(r)...)
	}

	if len(problems) > 0 {
		return &ValidationError{RouteID: r.ID, Problems: problems}
	}
	return nil
}

// validateBranching enforces a one-to-one mapping between selector option
// labels and endorsing bodies, so resolving a selection is never ambiguous.
func validateBranching(r *types.VisaRoute) []string {
	var problems []string

	selector, ok := r.Question(r.Branching.SelectorID)
	if !ok {
		return []string{fmt.Sprintf("selector %s is not a question of the route", r.Branching.SelectorID)}
	}
	if selector.Type != types.QuestionSingle {
		problems = append(problems, fmt.Sprintf("selector %s must be a single-choice question", selector.ID))
	}
	if selector.Body() != types.EndorsingBodyNone {
		problems = append(problems, fmt.Sprintf("selector %s must not be tagged", selector.ID))
	}

	labels := make(map[types.EndorsingBody]string)
	for _, opt := range selector.Options {
		body, ok := r.Branching.Bodies[opt]
		if !ok {
			problems = append(problems, fmt.Sprintf("selector option %q maps to no endorsing body", opt))
			continue
		}
		if !body.Valid() {
			problems = append(problems, fmt.Sprintf("selector option %q maps to unknown body %q", opt, body))
			continue
		}
		if prev, dup := labels[body]; dup {
			problems = append(problems, fmt.Sprintf("options %q and %q both map to %s", prev, opt, body))
		}
		labels[body] = opt
	}
	for label := range r.Branching.Bodies {
		if !contains(selector.Options, label) {
			problems = append(problems, fmt.Sprintf("branching label %q is not a selector option", label))
		}
	}
	return problems
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
