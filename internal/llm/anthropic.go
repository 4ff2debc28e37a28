package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// jsonSystemPrompt asks for bare JSON; the Messages API has no JSON mode flag.
const jsonSystemPrompt = "Respond with a single valid JSON value and nothing else. Do not use markdown code fences."

type anthropicBackend struct {
	client anthropic.Client
}

func newAnthropicBackend(apiKey, baseURL string, extra ...option.RequestOption) *anthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicBackend{client: anthropic.NewClient(append(opts, extra...)...)}
}

func (a *anthropicBackend) complete(ctx context.Context, model, prompt string, asJSON bool) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(temperature),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if asJSON {
		params.System = []anthropic.TextBlockParam{{Text: jsonSystemPrompt}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		perr := &ProviderError{Provider: ProviderAnthropic, Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.StatusCode
		}
		return "", perr
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &InvalidResponseError{Provider: ProviderAnthropic, Reason: "no text content in response"}
	}
	return sb.String(), nil
}

func (a *anthropicBackend) close() error { return nil }
