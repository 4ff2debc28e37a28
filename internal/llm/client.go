package llm

import (
	"context"
	"fmt"
)

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent returns free text from the model for tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON returns a single JSON value, with any code fences or
	// surrounding prose removed
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	GetModel(tier ModelTier) string
	Close() error
}

// temperature is kept low so assessments are stable across calls.
const temperature = 0.1

// backend is one provider's completion call.
type backend interface {
	complete(ctx context.Context, model, prompt string, asJSON bool) (string, error)
	close() error
}

// modelClient resolves tiers to models and delegates to a provider backend.
type modelClient struct {
	provider Provider
	config   *Config
	backend  backend
}

func (c *modelClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier, false)
}

func (c *modelClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt, tier, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *modelClient) generate(ctx context.Context, prompt string, tier ModelTier, asJSON bool) (string, error) {
	model := c.config.GetModel(tier)
	if model == "" {
		return "", fmt.Errorf("no %s model configured for tier %s", c.provider, tier)
	}
	return c.backend.complete(ctx, model, prompt, asJSON)
}

func (c *modelClient) GetModel(tier ModelTier) string { return c.config.GetModel(tier) }

func (c *modelClient) Close() error { return c.backend.close() }

type clientOptions struct {
	baseURL string
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

// WithBaseURL points OpenAI- or Anthropic-backed clients at a different API
// host, such as a proxy or a test server.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

// NewClient creates a client for config.Provider. A nil config means Gemini.
func NewClient(ctx context.Context, config *Config, apiKey string, opts ...ClientOption) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", config.Provider)
	}
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		b   backend
		err error
	)
	switch config.Provider {
	case ProviderOpenAI:
		b = newOpenAIBackend(apiKey, o.baseURL)
	case ProviderAnthropic:
		b = newAnthropicBackend(apiKey, o.baseURL)
	default:
		b, err = newGeminiBackend(ctx, apiKey)
	}
	if err != nil {
		return nil, err
	}
	return &modelClient{provider: config.Provider, config: config, backend: b}, nil
}
