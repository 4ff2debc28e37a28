package questionnaire

import "github.com/jonathan/visa-navigator/internal/types"

// ResolveEndorsingBody maps the answer to the route's selector question onto an
// endorsing body. The answer must be one of the selector's option labels or a
// body's canonical value. Anything else, including no answer, resolves to None.
func ResolveEndorsingBody(route *types.VisaRoute, answers *Answers) types.EndorsingBody {
	if route == nil || route.Branching == nil {
		return types.EndorsingBodyNone
	}
	value, ok := answers.Get(route.Branching.SelectorID)
	if !ok {
		return types.EndorsingBodyNone
	}
	label, ok := value.Str()
	if !ok || label == "" {
		return types.EndorsingBodyNone
	}
	if body, ok := route.Branching.Bodies[label]; ok {
		return body
	}
	if body := types.EndorsingBody(label); body.Valid() {
		return body
	}
	return types.EndorsingBodyNone
}

// Active returns the questions applicable to answers, in authored order.
// Untagged questions are always kept; questions tagged with an endorsing body
// are kept only when that body is the resolved selection. Questions with a
// showIf expression are kept only when it evaluates to true.
func Active(route *types.VisaRoute, answers *Answers) []types.Question {
	if route == nil {
		return []types.Question{}
	}
	if !route.IsConditional() {
		return route.Questions
	}

	body := ResolveEndorsingBody(route, answers)
	conds, condErr := sharedConditions()

	active := make([]types.Question, 0, len(route.Questions))
	for _, q := range route.Questions {
		if tagged := q.Body(); tagged != types.EndorsingBodyNone && tagged != body {
			continue
		}
		if q.ShowIf != "" && (condErr != nil || !conds.Visible(q.ShowIf, answers)) {
			continue
		}
		active = append(active, q)
	}
	return active
}

// IndexOf returns the position of id within questions, or -1.
func IndexOf(questions []types.Question, id string) int {
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return -1
}
