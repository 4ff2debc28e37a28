package questionnaire

import (
	"math/rand"
	"testing"

	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestEstimateScore_ClampsHigh(t *testing.T) {
	active := []types.Question{
		{ID: "q1", Type: types.QuestionBoolean, Weight: 10},
		{ID: "q2", Type: types.QuestionBoolean, Weight: 5},
		{ID: "q3", Type: types.QuestionBoolean, Weight: 8},
	}
	answers := NewAnswers(
		types.Answer{QuestionID: "q1", Answer: types.BoolValue(true)},
		types.Answer{QuestionID: "q2", Answer: types.BoolValue(false)},
		types.Answer{QuestionID: "q3", Answer: types.BoolValue(true)},
	)

	// 50 + 50 + 0 + 40 = 140
	assert.Equal(t, 100, EstimateScore(active, answers))
}

func TestEstimateScore_Contributions(t *testing.T) {
	tests := []struct {
		name     string
		question types.Question
		value    types.AnswerValue
		want     int
	}{
		{"true boolean", types.Question{ID: "q", Type: types.QuestionBoolean, Weight: 2}, types.BoolValue(true), 60},
		{"false boolean", types.Question{ID: "q", Type: types.QuestionBoolean, Weight: 2}, types.BoolValue(false), 50},
		{"non-empty string", types.Question{ID: "q", Type: types.QuestionText, Weight: 2}, types.StringValue("x"), 58},
		{"empty string", types.Question{ID: "q", Type: types.QuestionText, Weight: 2}, types.StringValue(""), 50},
		{"list", types.Question{ID: "q", Type: types.QuestionMultiple, Weight: 2}, types.ListValue("a", "b"), 62},
		{"empty list", types.Question{ID: "q", Type: types.QuestionMultiple, Weight: 2}, types.ListValue(), 50},
		{"positive number", types.Question{ID: "q", Type: types.QuestionNumber, Weight: 2}, types.NumberValue(3), 58},
		{"zero", types.Question{ID: "q", Type: types.QuestionNumber, Weight: 2}, types.NumberValue(0), 50},
		{"negative", types.Question{ID: "q", Type: types.QuestionNumber, Weight: 2}, types.NumberValue(-4), 50},
		{"true on non-boolean question", types.Question{ID: "q", Type: types.QuestionText, Weight: 2}, types.BoolValue(true), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := NewAnswers(types.Answer{QuestionID: "q", Answer: tt.value})
			assert.Equal(t, tt.want, EstimateScore([]types.Question{tt.question}, answers))
		})
	}
}

func TestEstimateScore_IgnoresInactiveAnswers(t *testing.T) {
	active := []types.Question{{ID: "shown", Type: types.QuestionText, Weight: 1}}
	answers := NewAnswers(
		types.Answer{QuestionID: "hidden", Answer: types.StringValue("kept in store")},
		types.Answer{QuestionID: "shown", Answer: types.StringValue("x")},
	)
	assert.Equal(t, 54, EstimateScore(active, answers))
	assert.Equal(t, 50, EstimateScore(nil, answers))
}

func TestEstimateScore_BoundsAndDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	kinds := []types.QuestionType{types.QuestionSingle, types.QuestionMultiple, types.QuestionBoolean, types.QuestionNumber, types.QuestionText}

	for i := 0; i < 200; i++ {
		var active []types.Question
		answers := NewAnswers()
		for j := 0; j < 1+rng.Intn(8); j++ {
			q := types.Question{ID: string(rune('a' + j)), Type: kinds[rng.Intn(len(kinds))], Weight: 5 + rng.Intn(16)}
			active = append(active, q)
			switch rng.Intn(5) {
			case 0:
				answers.Upsert(q.ID, types.BoolValue(rng.Intn(2) == 0))
			case 1:
				answers.Upsert(q.ID, types.NumberValue(float64(rng.Intn(21)-10)))
			case 2:
				answers.Upsert(q.ID, types.ListValue(make([]string, rng.Intn(4))...))
			case 3:
				answers.Upsert(q.ID, types.StringValue([]string{"", "yes"}[rng.Intn(2)]))
			}
		}

		score := EstimateScore(active, answers)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
		assert.Equal(t, score, EstimateScore(active, answers.Clone()))
	}
}
