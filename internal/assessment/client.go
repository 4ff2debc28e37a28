// Package assessment submits completed questionnaires to the AI assessment
// endpoint and classifies the outcome.
package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/visa-navigator/internal/metrics"
	"github.com/jonathan/visa-navigator/internal/tracing"
	"github.com/jonathan/visa-navigator/internal/types"
)

// DefaultTimeout bounds a single submission. AI assessments are slow.
const DefaultTimeout = 90 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// TokenSource supplies the bearer credential of the signed-in user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// Client posts assessment requests to the AI endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	tokens     TokenSource
	httpClient *http.Client
	tracer     tracing.Tracer
	logger     *slog.Logger
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the apikey header sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTracer sets the tracer used for submission spans.
func WithTracer(t tracing.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the assessment endpoint at endpoint.
func NewClient(endpoint string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tracer:     tracing.NewNoop(),
		logger:     slog.Default(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends req and returns the decoded success payload. Every failure is
// returned as an *Error whose Kind tells the caller what to do next.
func (c *Client) Submit(ctx context.Context, req *types.AssessmentRequest) (resp *types.AssessmentResponse, err error) {
	routeID := ""
	if req != nil && req.VisaRoute != nil {
		routeID = req.VisaRoute.ID
	}
	ctx, span := c.tracer.Start(ctx, tracing.SpanAssessmentSubmit,
		tracing.String(tracing.AttrRouteID, routeID),
	)
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if e := AsError(err); e != nil {
			outcome = string(e.Kind)
			span.SetAttributes(tracing.String(tracing.AttrErrorKind, outcome))
			c.logger.Warn("assessment submission failed",
				"route", routeID, "kind", e.Kind, "status", e.StatusCode, "error", e.Message)
		} else {
			c.logger.Info("assessment submitted", "route", routeID, "assessment_id", resp.AssessmentID)
		}
		metrics.ObserveSubmission(routeID, outcome, time.Since(start).Seconds())
		span.End(err)
	}()

	if req == nil {
		return nil, &Error{Kind: KindService, Message: "missing assessment request"}
	}
	if verr := req.Validate(); verr != nil {
		return nil, &Error{Kind: KindService, Message: "invalid assessment request", Cause: verr}
	}
	span.SetAttributes(tracing.Int(tracing.AttrAnswerCount, len(req.Answers)))

	token, terr := c.token(ctx)
	if terr != nil {
		return nil, terr
	}

	body, merr := json.Marshal(req)
	if merr != nil {
		return nil, &Error{Kind: KindService, Message: "failed to encode assessment request", Cause: merr}
	}

	httpReq, herr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if herr != nil {
		return nil, &Error{Kind: KindNetwork, Message: "failed to create request", Cause: herr}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		httpReq.Header.Set("apikey", c.apiKey)
	}

	httpResp, derr := c.httpClient.Do(httpReq)
	if derr != nil {
		return nil, &Error{Kind: KindNetwork, Message: "assessment request failed", Cause: derr}
	}
	defer func() { _ = httpResp.Body.Close() }()

	span.SetAttributes(tracing.Int(tracing.AttrStatusCode, httpResp.StatusCode))

	raw, rerr := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if rerr != nil {
		return nil, &Error{Kind: KindNetwork, Message: "failed to read response body", StatusCode: httpResp.StatusCode, Cause: rerr}
	}

	return c.decode(httpResp.StatusCode, raw)
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", &Error{Kind: KindAuthentication, Message: "not signed in"}
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return "", e
		}
		return "", &Error{Kind: KindAuthentication, Message: "no valid session", Cause: err}
	}
	if token == "" {
		return "", &Error{Kind: KindAuthentication, Message: "not signed in"}
	}
	return token, nil
}

// decode classifies a completed HTTP exchange.
func (c *Client) decode(status int, raw []byte) (*types.AssessmentResponse, error) {
	if status == http.StatusUnauthorized {
		return nil, &Error{Kind: KindAuthentication, Message: serverMessage(raw, "session expired"), StatusCode: status}
	}
	if status < 200 || status > 299 {
		return nil, &Error{Kind: KindService, Message: serverMessage(raw, http.StatusText(status)), StatusCode: status}
	}

	var resp types.AssessmentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Message: "response is not valid JSON", StatusCode: status, Cause: err}
	}
	if resp.Success != nil && !*resp.Success {
		return nil, &Error{Kind: KindService, Message: serverMessage(raw, "assessment failed"), StatusCode: status}
	}
	if err := c.validate.Struct(&resp); err != nil || !resp.Succeeded() {
		return nil, &Error{Kind: KindMalformedResponse, Message: "response is missing success or assessment", StatusCode: status, Cause: err}
	}
	return &resp, nil
}

// serverMessage extracts an error or message field from a JSON body, falling
// back to def.
func serverMessage(raw []byte, def string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, m := range []string{body.Error, body.Message, body.Msg} {
			if strings.TrimSpace(m) != "" {
				return m
			}
		}
	}
	if def == "" {
		return "unexpected response"
	}
	return def
}
