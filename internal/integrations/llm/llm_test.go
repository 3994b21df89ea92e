package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"feedbackbot/internal/config"
	"feedbackbot/internal/domain"
)

type scriptedCompleter struct {
	responses []Response
	errs      []error
	calls     int
}

func (s *scriptedCompleter) Complete(_ context.Context, _ Request) (Response, error) {
	i := s.calls
	s.calls++
	var resp Response
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return resp, s.errs[i]
	}
	if i < len(s.responses) {
		return resp, nil
	}
	return Response{}, errors.New("script exhausted")
}

func TestResolveModelDefaults(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{provider: "anthropic", want: defaultAnthropicModel},
		{provider: "openai", want: "gpt-4o"},
		{provider: "gemini", want: defaultGeminiModel},
		{provider: "openai", model: " gpt-4o-mini ", want: "gpt-4o-mini"},
	}
	for _, tt := range tests {
		if got := ResolveModel(tt.provider, tt.model); got != tt.want {
			t.Fatalf("ResolveModel(%q, %q) = %q, want %q", tt.provider, tt.model, got, tt.want)
		}
	}
}

func TestNewSelectsProvider(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai"} {
		cfg := config.Config{
			LLMProvider:      provider,
			AnthropicAPIKey:  "sk-ant",
			OpenAIAPIKey:     "sk-oai",
			LLMMaxTokens:     1024,
			LLMRetryAttempts: 1,
		}
		client, err := New(context.Background(), cfg, &http.Client{}, nil)
		if err != nil {
			t.Fatalf("New(%s) failed: %v", provider, err)
		}
		if client.Provider() != provider {
			t.Fatalf("provider = %q, want %q", client.Provider(), provider)
		}
		if client.Model() != ResolveModel(provider, "") {
			t.Fatalf("model = %q for provider %s", client.Model(), provider)
		}
	}

	if _, err := New(context.Background(), config.Config{LLMProvider: "cohere", AnthropicAPIKey: "sk-ant"}, nil, nil); err == nil {
		t.Fatal("expected unsupported provider to fail")
	}
}

func TestNewUsesSelectedProviderKey(t *testing.T) {
	cfg := config.Config{LLMProvider: "openai", AnthropicAPIKey: "sk-ant", LLMMaxTokens: 1024, LLMRetryAttempts: 1}
	if _, err := New(context.Background(), cfg, &http.Client{}, nil); err == nil || !strings.Contains(err.Error(), "no api key") {
		t.Fatalf("expected missing openai key to fail, got %v", err)
	}
}

func TestClientRetriesConfiguredAttempts(t *testing.T) {
	inner := &scriptedCompleter{
		errs:      []error{errors.New("503 overloaded"), nil},
		responses: []Response{{}, {Text: "ok", Usage: domain.Usage{InputTokens: 3}}},
	}
	client := Wrap("fake", "fake-model", inner, 2, nil)
	client.retry.InitialDelay = 1
	client.retry.MaxDelay = 1

	resp, err := client.Complete(context.Background(), Request{Stage: "classify"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "ok" || inner.calls != 2 {
		t.Fatalf("expected success on second attempt, got %q after %d calls", resp.Text, inner.calls)
	}
}

func TestClientSingleAttemptByDefault(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{errors.New("boom")}}
	client := Wrap("fake", "fake-model", inner, 1, nil)

	if _, err := client.Complete(context.Background(), Request{Stage: "compose"}); err == nil {
		t.Fatal("expected error to propagate")
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly one call without retries, got %d", inner.calls)
	}
}

func TestClientDoesNotRetryEmptyResponse(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{ErrEmptyResponse, nil}}
	client := Wrap("fake", "fake-model", inner, 3, nil)

	_, err := client.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyResponse) || inner.calls != 1 {
		t.Fatalf("expected ErrEmptyResponse after one call, got err=%v calls=%d", err, inner.calls)
	}
}

func TestClientKeepsUsageOfFailedCalls(t *testing.T) {
	inner := &scriptedCompleter{
		errs:      []error{ErrEmptyResponse},
		responses: []Response{{Usage: domain.Usage{InputTokens: 40, OutputTokens: 2}}},
	}
	client := Wrap("fake", "fake-model", inner, 1, nil)

	resp, err := client.Complete(context.Background(), Request{Stage: "compose"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if resp.Usage != (domain.Usage{InputTokens: 40, OutputTokens: 2}) {
		t.Fatalf("usage of the failed call was dropped: %+v", resp.Usage)
	}
}

func TestClientSumsUsageAcrossAttempts(t *testing.T) {
	inner := &scriptedCompleter{
		errs: []error{errors.New("503 overloaded"), nil},
		responses: []Response{
			{Usage: domain.Usage{InputTokens: 10}},
			{Text: "ok", Usage: domain.Usage{InputTokens: 3, OutputTokens: 1}},
		},
	}
	client := Wrap("fake", "fake-model", inner, 2, nil)
	client.retry.InitialDelay = 1
	client.retry.MaxDelay = 1

	resp, err := client.Complete(context.Background(), Request{Stage: "classify"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Usage != (domain.Usage{InputTokens: 13, OutputTokens: 1}) {
		t.Fatalf("usage = %+v, want both attempts counted", resp.Usage)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n[1,2]\n```": "[1,2]",
		"```\n{}\n```":         "{}",
		"  [ ]  ":              "[ ]",
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
