package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const techNationLabel = "Tech Nation - Digital Technology (AI, fintech, cybersecurity, etc.)"

func TestDefault_LoadsBuiltInRoutes(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"family-partner",
		"global-talent",
		"indefinite-leave-to-remain",
		"skilled-worker",
		"standard-visitor",
		"student",
	}, c.IDs())
	assert.Equal(t, 6, c.Len())
	assert.NoError(t, c.Validate())
}

func TestGet_ReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	route, ok := c.Get("student")
	require.True(t, ok)
	route.Questions[0].Text = "changed"
	route.Questions = route.Questions[:1]

	again, ok := c.Get("student")
	require.True(t, ok)
	assert.NotEqual(t, "changed", again.Questions[0].Text)
	assert.Greater(t, len(again.Questions), 1)

	_, ok = c.Get("unknown")
	assert.False(t, ok)
}

func TestByCategory(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	work := c.ByCategory(types.CategoryWork)
	require.Len(t, work, 2)
	assert.Equal(t, "global-talent", work[0].ID)
	assert.Equal(t, "skilled-worker", work[1].ID)
	assert.Empty(t, c.ByCategory("Holiday"))
}

func TestGlobalTalent_Branching(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	route, ok := c.Get("global-talent")
	require.True(t, ok)

	prefixes := []string{"tech-", "arts-", "ba-", "rs-", "rae-", "ukri-"}
	hasAnyPrefix := func(id string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(id, p) {
				return true
			}
		}
		return false
	}

	before := questionnaire.Active(route, questionnaire.NewAnswers())
	for _, q := range before {
		assert.False(t, hasAnyPrefix(q.ID), "unexpected sector question %s", q.ID)
	}

	answers := questionnaire.NewAnswers(types.Answer{
		QuestionID: route.Branching.SelectorID,
		Answer:     types.StringValue(techNationLabel),
	})
	after := questionnaire.Active(route, answers)

	var afterIDs []string
	for _, q := range after {
		afterIDs = append(afterIDs, q.ID)
		if hasAnyPrefix(q.ID) {
			assert.True(t, strings.HasPrefix(q.ID, "tech-"), "unexpected sector question %s", q.ID)
		}
	}
	for _, q := range route.Questions {
		if !hasAnyPrefix(q.ID) || strings.HasPrefix(q.ID, "tech-") {
			assert.Contains(t, afterIDs, q.ID)
		}
	}
}

func TestGlobalTalent_EveryOptionResolves(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	route, _ := c.Get("global-talent")
	selector, ok := route.Question(route.Branching.SelectorID)
	require.True(t, ok)

	seen := make(map[types.EndorsingBody]bool)
	for _, opt := range selector.Options {
		answers := questionnaire.NewAnswers(types.Answer{QuestionID: selector.ID, Answer: types.StringValue(opt)})
		body := questionnaire.ResolveEndorsingBody(route, answers)
		require.True(t, body.Valid(), "option %q", opt)
		seen[body] = true
	}
	assert.Len(t, seen, len(types.EndorsingBodies()))
}

func TestSkilledWorker_ShowIfCompiles(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	route, _ := c.Get("skilled-worker")

	noOffer := questionnaire.NewAnswers(types.Answer{QuestionID: "has-job-offer", Answer: types.BoolValue(false)})
	offer := questionnaire.NewAnswers(types.Answer{QuestionID: "has-job-offer", Answer: types.BoolValue(true)})
	assert.Less(t, len(questionnaire.Active(route, noOffer)), len(questionnaire.Active(route, offer)))
	assert.Len(t, questionnaire.Active(route, offer), len(route.Questions))
}

func validRoute() *types.VisaRoute {
	return &types.VisaRoute{
		ID:            "test-route",
		Name:          "Test",
		Category:      types.CategoryVisit,
		Difficulty:    types.DifficultyEasy,
		ReferenceURLs: []string{"https://www.gov.uk/standard-visitor"},
		Questions: []types.Question{
			{ID: "purpose", Text: "Why?", Type: types.QuestionSingle, Options: []string{"Tourism"}, Required: true, Weight: 10},
			{ID: "days", Text: "How long?", Type: types.QuestionNumber, Weight: 5},
		},
	}
}

func TestValidateRoute(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *types.VisaRoute)
		problem string
	}{
		{"duplicate id", func(r *types.VisaRoute) { r.Questions[1].ID = "purpose" }, "duplicate question id"},
		{"zero weight", func(r *types.VisaRoute) { r.Questions[1].Weight = 0 }, "Weight"},
		{"missing options", func(r *types.VisaRoute) { r.Questions[0].Options = nil }, "needs options"},
		{"stray options", func(r *types.VisaRoute) { r.Questions[1].Options = []string{"x"} }, "must not have options"},
		{"untagged prefix", func(r *types.VisaRoute) { r.Questions[1].ID = "tech-days" }, "uses the tech- prefix"},
		{"bad showIf", func(r *types.VisaRoute) { r.Questions[1].ShowIf = "answers[" }, "invalid condition"},
		{"tag without branching", func(r *types.VisaRoute) {
			r.Questions[1].ID = "arts-days"
			r.Questions[1].ConditionalLogic = &types.ConditionalLogic{DependsOnID: "purpose", EndorsingBody: types.EndorsingBodyArtsCouncil}
		}, "no branching"},
	}

	require.NoError(t, ValidateRoute(validRoute()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRoute()
			tt.mutate(r)
			err := ValidateRoute(r)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "test-route", verr.RouteID)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func branchingRoute() *types.VisaRoute {
	r := validRoute()
	r.Questions[0] = types.Question{ID: "selector", Text: "Body?", Type: types.QuestionSingle, Options: []string{"Tech", "Arts"}, Required: true, Weight: 10}
	r.Questions = append(r.Questions, types.Question{
		ID: "tech-role", Text: "Role?", Type: types.QuestionText, Weight: 5,
		ConditionalLogic: &types.ConditionalLogic{DependsOnID: "selector", EndorsingBody: types.EndorsingBodyTechNation},
	})
	r.Branching = &types.EndorsementBranching{
		SelectorID: "selector",
		Bodies:     map[string]types.EndorsingBody{"Tech": types.EndorsingBodyTechNation, "Arts": types.EndorsingBodyArtsCouncil},
	}
	return r
}

func TestValidateRoute_Branching(t *testing.T) {
	require.NoError(t, ValidateRoute(branchingRoute()))

	tests := []struct {
		name    string
		mutate  func(r *types.VisaRoute)
		problem string
	}{
		{"two labels one body", func(r *types.VisaRoute) {
			r.Branching.Bodies["Arts"] = types.EndorsingBodyTechNation
		}, "both map to tech-nation"},
		{"unmapped option", func(r *types.VisaRoute) {
			delete(r.Branching.Bodies, "Arts")
		}, `option "Arts" maps to no endorsing body`},
		{"label not an option", func(r *types.VisaRoute) {
			r.Branching.Bodies["Science"] = types.EndorsingBodyRoyalSociety
		}, `label "Science" is not a selector option`},
		{"missing selector", func(r *types.VisaRoute) {
			r.Branching.SelectorID = "nope"
		}, "selector nope is not a question"},
		{"selector not single", func(r *types.VisaRoute) {
			r.Questions[0].Type = types.QuestionMultiple
		}, "must be a single-choice question"},
		{"tag without prefix", func(r *types.VisaRoute) {
			r.Questions[2].ConditionalLogic.EndorsingBody = types.EndorsingBodyUKRI
		}, "lacks prefix ukri-"},
		{"depends on other question", func(r *types.VisaRoute) {
			r.Questions[2].ConditionalLogic.DependsOnID = "days"
		}, "not the selector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := branchingRoute()
			tt.mutate(r)
			err := ValidateRoute(r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestNew_RejectsDuplicateRoutes(t *testing.T) {
	_, err := New(validRoute(), validRoute())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate route id")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, defaultRoutes, 0o644))
	c, err := Load(good)
	require.NoError(t, err)
	assert.Equal(t, 6, c.Len())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"routes":[{"id":"x"}]}`), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
