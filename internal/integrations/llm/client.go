package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"feedbackbot/internal/config"
	"feedbackbot/internal/domain"
	"feedbackbot/internal/retry"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o"
	defaultGeminiModel    = "gemini-2.5-flash"
)

// Request is one blocking text-generation call. Stage names the pipeline
// stage issuing it and is only used for logging.
type Request struct {
	Stage  string
	System string
	User   string
}

type Response struct {
	Text  string
	Usage domain.Usage
}

// Completer is the text-generation backend the pipeline stages call.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Client wraps a provider with logging and the configured retry policy.
type Client struct {
	provider string
	model    string
	inner    Completer
	retry    retry.Config
	log      *zap.Logger
}

// New builds the client for cfg.LLMProvider. The provider's credential is
// taken from cfg; nothing is looked up globally.
func New(ctx context.Context, cfg config.Config, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	model := ResolveModel(cfg.LLMProvider, cfg.LLMModel)
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no api key configured for llm_provider %q", cfg.LLMProvider)
	}

	var inner Completer
	switch cfg.LLMProvider {
	case "anthropic":
		inner = newAnthropicClient(apiKey, model, cfg.LLMMaxTokens, httpClient)
	case "openai":
		inner = newOpenAIClient(apiKey, model, cfg.LLMMaxTokens, httpClient)
	case "gemini":
		gc, err := newGeminiClient(ctx, apiKey, model, cfg.LLMMaxTokens, httpClient)
		if err != nil {
			return nil, err
		}
		inner = gc
	default:
		return nil, fmt.Errorf("unsupported llm_provider %q", cfg.LLMProvider)
	}

	return Wrap(cfg.LLMProvider, model, inner, cfg.LLMRetryAttempts, log), nil
}

// Wrap decorates an existing Completer. Tests use it to put fakes behind the
// same logging and retry path as the real providers.
func Wrap(provider, model string, inner Completer, attempts int, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	rc := retry.DefaultConfig()
	rc.MaxAttempts = attempts
	rc.Retryable = isRetryable
	rc.Logger = log
	return &Client{
		provider: provider,
		model:    model,
		inner:    inner,
		retry:    rc,
		log:      log,
	}
}

func (c *Client) Provider() string { return c.provider }
func (c *Client) Model() string    { return c.model }

func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	c.log.Info("llm request",
		zap.String("stage", req.Stage),
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Int("prompt_chars", len(req.System)+len(req.User)),
	)

	// Usage is summed over every attempt, failed ones included.
	var spent domain.Usage
	resp, err := retry.DoWithResult(ctx, c.retry, func(ctx context.Context) (Response, error) {
		r, err := c.inner.Complete(ctx, req)
		spent.Add(r.Usage)
		return r, err
	})
	resp.Usage = spent
	if err != nil {
		c.log.Error("llm request failed",
			zap.String("stage", req.Stage),
			zap.String("provider", c.provider),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int64("tokens_in", spent.InputTokens),
			zap.Error(err),
		)
		return resp, err
	}

	c.log.Info("llm response",
		zap.String("stage", req.Stage),
		zap.Int("size", len(resp.Text)),
		zap.Int64("tokens_in", resp.Usage.InputTokens),
		zap.Int64("tokens_out", resp.Usage.OutputTokens),
		zap.Int64("cache_create", resp.Usage.CacheCreationInputTokens),
		zap.Int64("cache_read", resp.Usage.CacheReadInputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// ResolveModel returns the configured model or the provider default.
func ResolveModel(provider, model string) string {
	if strings.TrimSpace(model) != "" {
		return strings.TrimSpace(model)
	}
	switch provider {
	case "openai":
		return defaultOpenAIModel
	case "gemini":
		return defaultGeminiModel
	default:
		return defaultAnthropicModel
	}
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("no text content in LLM response")

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrEmptyResponse)
}

// StripCodeFence removes a surrounding ```json fence that models add despite
// being asked for bare JSON.
func StripCodeFence(responseText string) string {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	return strings.TrimSpace(responseText)
}
