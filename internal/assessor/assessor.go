// Package assessor produces authoritative eligibility assessments with an LLM.
// It backs the AI assessment endpoint that the wizard submits to.
package assessor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/llm"
	"github.com/jonathan/visa-navigator/internal/metrics"
	"github.com/jonathan/visa-navigator/internal/prompts"
	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/schemas"
	"github.com/jonathan/visa-navigator/internal/tracing"
	"github.com/jonathan/visa-navigator/internal/types"
	embedded "github.com/jonathan/visa-navigator/schemas"
)

// ErrInvalidRequest is returned when the request cannot be assessed.
var ErrInvalidRequest = errors.New("invalid assessment request")

// OutputError means the model answered with something that is not a valid
// assessment.
type OutputError struct {
	Output string
	Cause  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("model output is not a valid assessment: %v", e.Cause)
}

func (e *OutputError) Unwrap() error { return e.Cause }

// Assessor turns an assessment request into an AssessmentResponse.
type Assessor struct {
	client   llm.Client
	provider llm.Provider
	tier     llm.ModelTier
	tracer   tracing.Tracer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithProvider labels metrics and spans with the provider name.
func WithProvider(p llm.Provider) Option {
	return func(a *Assessor) { a.provider = p }
}

// WithTier selects the model tier.
func WithTier(t llm.ModelTier) Option {
	return func(a *Assessor) { a.tier = t }
}

// WithTracer sets the tracer.
func WithTracer(t tracing.Tracer) Option {
	return func(a *Assessor) { a.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assessor) { a.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assessor) { a.now = now }
}

// WithIDGenerator overrides assessment id generation.
func WithIDGenerator(f func() string) Option {
	return func(a *Assessor) { a.newID = f }
}

// New creates an Assessor backed by client.
func New(client llm.Client, opts ...Option) *Assessor {
	a := &Assessor{
		client:   client,
		provider: llm.ProviderGemini,
		tier:     llm.TierAdvanced,
		tracer:   tracing.NewNoop(),
		logger:   slog.Default(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type modelOutput struct {
	Assessment types.Assessment   `json:"assessment"`
	ActionPlan []types.ActionStep `json:"actionPlan"`
}

// Assess asks the model for an assessment, validates its output against the
// assessment result schema and wraps it in a success response.
func (a *Assessor) Assess(ctx context.Context, req *types.AssessmentRequest) (resp *types.AssessmentResponse, err error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if verr := req.Validate(); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, verr)
	}
	for _, ans := range req.Answers {
		if aerr := req.VisaRoute.CheckAnswer(ans.QuestionID, ans.Answer); aerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, aerr)
		}
	}

	ctx, span := a.tracer.Start(ctx, tracing.SpanAIAssessment,
		tracing.String(tracing.AttrRouteID, req.VisaRoute.ID),
		tracing.String(tracing.AttrProvider, string(a.provider)),
		tracing.Int(tracing.AttrAnswerCount, len(req.Answers)),
	)
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		metrics.ObserveAIAssessment(string(a.provider), outcome)
		span.End(err)
	}()

	raw, err := a.client.GenerateJSON(ctx, BuildPrompt(req), a.tier)
	if err != nil {
		a.logger.Error("assessment generation failed", "route", req.VisaRoute.ID, "error", err)
		return nil, fmt.Errorf("failed to generate assessment: %w", err)
	}
	raw = llm.CleanJSONBlock(raw)

	if verr := schemas.ValidateDocument(embedded.AssessmentResult, []byte(raw)); verr != nil {
		a.logger.Warn("model output failed schema validation", "route", req.VisaRoute.ID, "error", verr)
		return nil, &OutputError{Output: raw, Cause: verr}
	}

	var out modelOutput
	if derr := json.Unmarshal([]byte(raw), &out); derr != nil {
		return nil, &OutputError{Output: raw, Cause: derr}
	}
	if out.ActionPlan == nil {
		out.ActionPlan = []types.ActionStep{}
	}
	plan, err := json.Marshal(out.ActionPlan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action plan: %w", err)
	}

	span.SetAttributes(tracing.Float64(tracing.AttrScore, out.Assessment.OverallScore))
	success := true
	return &types.AssessmentResponse{
		Success:            &success,
		Assessment:         &out.Assessment,
		ActionPlan:         plan,
		AssessmentID:       a.newID(),
		UKVIApplicationURL: req.VisaRoute.UKVIApplicationURL,
		Timestamp:          a.now().UTC().Format(time.RFC3339),
	}, nil
}

// AssessmentSchema describes the JSON the model must return.
func AssessmentSchema() llm.OutputSchema {
	return llm.OutputSchema{
		Name:        "EligibilityAssessment",
		Description: prompts.MustGet("assessment.json", "adviser-role"),
		Fields: []llm.SchemaField{
			{Name: "assessment", Type: `{"overallScore": number, "eligibilityStatus": "string", "summary": "string", "strengths": ["string"], "gaps": ["string"], "missingDocuments": ["string"]}`, Description: "overallScore is 0-100", Required: true},
			{Name: "actionPlan", Type: `[{"title": "string", "description": "string", "priority": "high|medium|low", "timeline": "string"}]`, Description: "concrete next steps, most important first", Required: true},
		},
		Rules: []string{
			"eligibilityStatus must be one of likely_eligible, possibly_eligible, unlikely_eligible, insufficient_information.",
			"Use insufficient_information when required answers are missing.",
			"Base strengths and gaps on the answers; do not invent facts about the applicant.",
			"The heuristic estimate is a rough client-side signal. Do not copy it as the overall score.",
		},
	}
}

// BuildPrompt renders the assessment prompt for req. Only answers to
// questions that are active for the given answers are included.
func BuildPrompt(req *types.AssessmentRequest) string {
	route := req.VisaRoute
	answers := questionnaire.NewAnswers(req.Answers...)
	active := questionnaire.Active(route, answers)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Visa route: %s (%s)\n", route.Name, route.ID))
	if route.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", route.Description))
	}
	sb.WriteString(fmt.Sprintf("Category: %s, difficulty: %s\n", route.Category, route.Difficulty))
	if route.Cost != "" || route.ProcessingTime != "" {
		sb.WriteString(fmt.Sprintf("Cost: %s, processing time: %s\n", route.Cost, route.ProcessingTime))
	}
	if len(route.Requirements) > 0 {
		sb.WriteString("Requirements:\n")
		for _, r := range route.Requirements {
			sb.WriteString(fmt.Sprintf("- %s\n", r))
		}
	}
	if body := questionnaire.ResolveEndorsingBody(route, answers); body != types.EndorsingBodyNone {
		sb.WriteString(fmt.Sprintf("Endorsing body: %s\n", body))
	}

	sb.WriteString("\nAnswers:\n")
	for _, q := range active {
		value, ok := answers.Get(q.ID)
		shown := "(not answered)"
		if ok && value.IsPresent() {
			shown = value.String()
		}
		marker := ""
		if q.Required {
			marker = " [required]"
		}
		sb.WriteString(fmt.Sprintf("- %s%s: %s\n", q.Text, marker, shown))
	}

	sb.WriteString("\n" + prompts.Format(prompts.MustGet("assessment.json", "heuristic-estimate"), map[string]string{
		"Score": strconv.Itoa(questionnaire.EstimateScore(active, answers)),
	}) + "\n")
	if len(req.UserProfile) > 0 && string(req.UserProfile) != "null" {
		sb.WriteString(prompts.Format(prompts.MustGet("assessment.json", "applicant-profile"), map[string]string{
			"Profile": string(req.UserProfile),
		}) + "\n")
	}

	return llm.BuildStructuredPrompt(AssessmentSchema(), sb.String())
}
