package llm

import (
	"context"

	"github.com/jonathan/visa-navigator/internal/tracing"
)

// tracedClient records a span around every generation call.
type tracedClient struct {
	Client
	provider Provider
	tracer   tracing.Tracer
}

// WithTracing wraps c so each generation call emits a span.
func WithTracing(c Client, provider Provider, tracer tracing.Tracer) Client {
	if tracer == nil {
		return c
	}
	return &tracedClient{Client: c, provider: provider, tracer: tracer}
}

func (t *tracedClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (out string, err error) {
	ctx, span := t.start(ctx, tier)
	defer func() { span.End(err) }()
	return t.Client.GenerateContent(ctx, prompt, tier)
}

func (t *tracedClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (out string, err error) {
	ctx, span := t.start(ctx, tier)
	defer func() { span.End(err) }()
	return t.Client.GenerateJSON(ctx, prompt, tier)
}

func (t *tracedClient) start(ctx context.Context, tier ModelTier) (context.Context, tracing.Span) {
	return t.tracer.Start(ctx, tracing.SpanLLMGenerate,
		tracing.String(tracing.AttrProvider, string(t.provider)),
		tracing.String(tracing.AttrModel, t.GetModel(tier)),
	)
}
