package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// openAIBackend serves OpenAI and OpenAI-compatible APIs.
type openAIBackend struct {
	client *openai.Client
}

func newOpenAIBackend(apiKey, baseURL string) *openAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIBackend{client: openai.NewClientWithConfig(cfg)}
}

func (o *openAIBackend) complete(ctx context.Context, model, prompt string, asJSON bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
	}
	if asJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		perr := &ProviderError{Provider: ProviderOpenAI, Err: err}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.HTTPStatusCode
		}
		return "", perr
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &InvalidResponseError{Provider: ProviderOpenAI, Reason: "no choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *openAIBackend) close() error { return nil }
