package questionnaire

import "github.com/jonathan/visa-navigator/internal/types"

const (
	estimateBase = 50
	estimateMin  = 0
	estimateMax  = 100
)

// EstimateScore computes the live 0-100 heuristic shown while the user is still
// answering. It only counts answers to questions in active and is unrelated to
// the score returned by the assessment service.
func EstimateScore(active []types.Question, answers *Answers) int {
	score := estimateBase
	for _, q := range active {
		value, ok := answers.Get(q.ID)
		if !ok {
			continue
		}
		score += contribution(q, value)
	}
	return clamp(score, estimateMin, estimateMax)
}

func contribution(q types.Question, value types.AnswerValue) int {
	if b, ok := value.Bool(); ok && q.Type == types.QuestionBoolean && b {
		return q.Weight * 5
	}
	if s, ok := value.Str(); ok && s != "" {
		return q.Weight * 4
	}
	if n := value.Len(); n > 0 {
		return q.Weight * n * 3
	}
	if n, ok := value.Number(); ok && n > 0 {
		return q.Weight * 4
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
