package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"feedbackbot/internal/domain"
)

type geminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func newGeminiClient(ctx context.Context, apiKey, model string, maxTokens int, httpClient *http.Client) (*geminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiClient{client: client, model: model, maxTokens: maxTokens}, nil
}

func (c *geminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		MaxOutputTokens:   int32(c.maxTokens),
	})
	if err != nil {
		return Response{}, fmt.Errorf("Gemini API error: %w", err)
	}
	var usage domain.Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		usage.CacheReadInputTokens = int64(resp.UsageMetadata.CachedContentTokenCount)
	}
	text := resp.Text()
	if text == "" {
		return Response{Usage: usage}, ErrEmptyResponse
	}
	return Response{Text: text, Usage: usage}, nil
}
