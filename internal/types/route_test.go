//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoute() *VisaRoute {
	return &VisaRoute{
		ID:            "global-talent",
		Name:          "Global Talent",
		Category:      CategoryWork,
		Difficulty:    DifficultyHard,
		ReferenceURLs: []string{"https://www.gov.uk/global-talent"},
		Branching: &EndorsementBranching{
			SelectorID: "endorsing-body-selection",
			Bodies:     map[string]EndorsingBody{"Tech Nation": EndorsingBodyTechNation},
		},
		Questions: []Question{
			{ID: "endorsing-body-selection", Text: "Which body?", Type: QuestionSingle, Options: []string{"Tech Nation"}, Required: true, Weight: 10},
			{
				ID: "tech-open-source", Text: "Open source?", Type: QuestionBoolean, Weight: 8,
				ConditionalLogic: &ConditionalLogic{DependsOnID: "endorsing-body-selection", EndorsingBody: EndorsingBodyTechNation},
			},
		},
	}
}

func TestEndorsingBody_Prefix(t *testing.T) {
	assert.Equal(t, "tech-", EndorsingBodyTechNation.Prefix())
	assert.Equal(t, "arts-", EndorsingBodyArtsCouncil.Prefix())
	assert.Equal(t, "ba-", EndorsingBodyBritishAcademy.Prefix())
	assert.Equal(t, "rs-", EndorsingBodyRoyalSociety.Prefix())
	assert.Equal(t, "rae-", EndorsingBodyRoyalAcademyEngineering.Prefix())
	assert.Equal(t, "ukri-", EndorsingBodyUKRI.Prefix())
	assert.Equal(t, "", EndorsingBodyNone.Prefix())
	assert.False(t, EndorsingBodyNone.Valid())
}

func TestBodyForPrefix(t *testing.T) {
	body, ok := BodyForPrefix("rae-chartered")
	assert.True(t, ok)
	assert.Equal(t, EndorsingBodyRoyalAcademyEngineering, body)

	_, ok = BodyForPrefix("research-output")
	assert.False(t, ok)
}

func TestVisaRoute_Clone(t *testing.T) {
	route := sampleRoute()
	clone := route.Clone()

	clone.Questions[0].Options[0] = "changed"
	clone.Questions[1].ConditionalLogic.EndorsingBody = EndorsingBodyUKRI
	clone.Branching.Bodies["Tech Nation"] = EndorsingBodyUKRI
	clone.ReferenceURLs[0] = "https://example.com"

	assert.Equal(t, "Tech Nation", route.Questions[0].Options[0])
	assert.Equal(t, EndorsingBodyTechNation, route.Questions[1].Body())
	assert.Equal(t, EndorsingBodyTechNation, route.Branching.Bodies["Tech Nation"])
	assert.Equal(t, "https://www.gov.uk/global-talent", route.ReferenceURLs[0])
}

func TestVisaRoute_Validate(t *testing.T) {
	require.NoError(t, sampleRoute().Validate())

	bad := sampleRoute()
	bad.Questions[1].Weight = 0
	assert.Error(t, bad.Validate())

	bad = sampleRoute()
	bad.Category = "Holiday"
	assert.Error(t, bad.Validate())
}

func TestVisaRoute_IsConditional(t *testing.T) {
	assert.True(t, sampleRoute().IsConditional())

	plain := &VisaRoute{Questions: []Question{{ID: "a", Type: QuestionBoolean, Weight: 5}}}
	assert.False(t, plain.IsConditional())

	plain.Questions[0].ShowIf = `"b" in answers`
	assert.True(t, plain.IsConditional())
}

func TestVisaRoute_Question(t *testing.T) {
	route := sampleRoute()
	q, ok := route.Question("tech-open-source")
	require.True(t, ok)
	assert.Equal(t, EndorsingBodyTechNation, q.Body())

	_, ok = route.Question("missing")
	assert.False(t, ok)
}

func TestQuestion_Accepts(t *testing.T) {
	choice := Question{ID: "english-level", Type: QuestionSingle, Options: []string{"B1", "B2", "C1"}}
	multi := Question{ID: "documents", Type: QuestionMultiple, Options: []string{"Passport", "Payslips"}}
	flag := Question{ID: "has-job-offer", Type: QuestionBoolean}
	amount := Question{ID: "salary", Type: QuestionNumber}
	free := Question{ID: "notes", Type: QuestionText}

	tests := []struct {
		name    string
		q       Question
		value   AnswerValue
		wantErr string
	}{
		{"single option", choice, StringValue("B2"), ""},
		{"single cleared", choice, StringValue(""), ""},
		{"single unknown option", choice, StringValue("A1"), `"A1" is not one of the options`},
		{"single given a list", choice, ListValue("B1", "B2", "C1", "C2"), "expected a string, got a list"},
		{"multiple options", multi, ListValue("Passport", "Payslips"), ""},
		{"multiple empty", multi, ListValue(), ""},
		{"multiple unknown option", multi, ListValue("Passport", "Visa"), `"Visa" is not one of the options`},
		{"multiple duplicate", multi, ListValue("Passport", "Passport"), "selected more than once"},
		{"multiple given a string", multi, StringValue("Passport"), "expected a list"},
		{"boolean false", flag, BoolValue(false), ""},
		{"boolean given a string", flag, StringValue("no"), "expected a boolean, got a string"},
		{"number zero", amount, NumberValue(0), ""},
		{"number given a boolean", amount, BoolValue(true), "expected a number"},
		{"text", free, StringValue("anything"), ""},
		{"text given a number", free, NumberValue(3), "expected a string"},
		{"absent clears any type", flag, AnswerValue{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Accepts(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var answerErr *AnswerError
			require.ErrorAs(t, err, &answerErr)
			assert.Equal(t, tt.q.ID, answerErr.QuestionID)
		})
	}
}

func TestVisaRoute_CheckAnswer(t *testing.T) {
	route := sampleRoute()

	assert.NoError(t, route.CheckAnswer("endorsing-body-selection", StringValue("Tech Nation")))
	assert.NoError(t, route.CheckAnswer("endorsing-body-selection", StringValue("tech-nation")))
	assert.Error(t, route.CheckAnswer("endorsing-body-selection", StringValue("ukri")))
	assert.NoError(t, route.CheckAnswer("tech-open-source", BoolValue(true)))
	assert.Error(t, route.CheckAnswer("tech-open-source", StringValue("yes")))

	err := route.CheckAnswer("not-a-question", StringValue("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown question")

	var nilRoute *VisaRoute
	assert.Error(t, nilRoute.CheckAnswer("anything", BoolValue(true)))
}
