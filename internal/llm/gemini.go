package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type geminiBackend struct {
	client *genai.Client
}

func newGeminiBackend(ctx context.Context, apiKey string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

func (g *geminiBackend) complete(ctx context.Context, model, prompt string, asJSON bool) (string, error) {
	m := g.client.GenerativeModel(model)
	m.SetTemperature(temperature)
	if asJSON {
		m.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &ProviderError{Provider: ProviderGemini, Err: err}
	}
	return geminiText(resp)
}

func (g *geminiBackend) close() error { return g.client.Close() }

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &InvalidResponseError{Provider: ProviderGemini, Reason: "no candidates in response"}
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", &InvalidResponseError{Provider: ProviderGemini, Reason: "no content in response"}
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", &InvalidResponseError{Provider: ProviderGemini, Reason: "no text parts in response"}
	}
	return sb.String(), nil
}
