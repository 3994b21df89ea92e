package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	DefaultSampleSize           = 200
	defaultLLMMaxTokens         = 4096
	defaultHistoryRetentionDays = 90
	defaultHistoryPruneSchedule = "0 3 * * *"
)

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	LLMProvider       string `yaml:"llm_provider"`
	LLMModel          string `yaml:"llm_model"`
	LLMMaxTokens      int    `yaml:"llm_max_tokens"`
	LLMRetryAttempts  int    `yaml:"llm_retry_attempts"`
	LLMGlossaryPath   string `yaml:"llm_glossary_path"`
	LLMGuidePath      string `yaml:"llm_classification_guide_path"`
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`
	OpenAIAPIKey      string `yaml:"openai_api_key"`
	GeminiAPIKey      string `yaml:"gemini_api_key"`
	SampleSize        int    `yaml:"sample_size"`
	ConcurrentSummary *bool  `yaml:"concurrent_summaries"`

	DBPath                     string `yaml:"db_path"`
	HistoryRetentionDays       int    `yaml:"history_retention_days"`
	HistoryPruneSchedule       string `yaml:"history_prune_schedule"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`

	AnalystSlackIDs []string `yaml:"analyst_slack_ids"`
	TeamName        string   `yaml:"team_name"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
}

// ConfigError reports a setting that prevents the bot from starting.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Msg)
}

func configErrorf(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Msg: fmt.Sprintf(format, args...)}
}

// Load reads config.yaml (or CONFIG_PATH), applies environment overrides and
// defaults, and validates the result.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, configErrorf("", "parsing %s: %v", configPath, err)
		}
	}

	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.LLMGlossaryPath, "LLM_GLOSSARY_PATH")
	envOverride(&cfg.LLMGuidePath, "LLM_CLASSIFICATION_GUIDE_PATH")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.HistoryPruneSchedule, "HISTORY_PRUNE_SCHEDULE")
	envOverride(&cfg.TeamName, "TEAM_NAME")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")

	ints := []struct {
		field *int
		key   string
	}{
		{&cfg.LLMMaxTokens, "LLM_MAX_TOKENS"},
		{&cfg.LLMRetryAttempts, "LLM_RETRY_ATTEMPTS"},
		{&cfg.SampleSize, "SAMPLE_SIZE"},
		{&cfg.HistoryRetentionDays, "HISTORY_RETENTION_DAYS"},
		{&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"},
	}
	for _, o := range ints {
		if err := envOverrideInt(o.field, o.key); err != nil {
			return Config{}, err
		}
	}
	envOverrideBool(&cfg.ConcurrentSummary, "CONCURRENT_SUMMARIES")

	if ids := os.Getenv("ANALYST_SLACK_IDS"); ids != "" {
		cfg.AnalystSlackIDs = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.AnalystSlackIDs = append(cfg.AnalystSlackIDs, id)
			}
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = defaultLLMMaxTokens
	}
	if cfg.LLMRetryAttempts == 0 {
		cfg.LLMRetryAttempts = 1
	}
	if cfg.LLMGuidePath == "" {
		cfg.LLMGuidePath = "./llm_classification_guide.md"
	}
	if cfg.SampleSize == 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.ConcurrentSummary == nil {
		enabled := true
		cfg.ConcurrentSummary = &enabled
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./feedbackbot.db"
	}
	if cfg.HistoryRetentionDays == 0 {
		cfg.HistoryRetentionDays = defaultHistoryRetentionDays
	}
	if strings.TrimSpace(cfg.HistoryPruneSchedule) == "" {
		cfg.HistoryPruneSchedule = defaultHistoryPruneSchedule
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.TeamName == "" {
		cfg.TeamName = "Product"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
}

// Validate checks required credentials and value ranges.
func (c Config) Validate() error {
	required := []struct {
		key string
		val string
	}{
		{"slack_bot_token", c.SlackBotToken},
		{"slack_app_token", c.SlackAppToken},
	}
	for _, r := range required {
		if r.val == "" {
			return configErrorf(r.key, "required setting is not set (via config.yaml or env var)")
		}
	}

	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return configErrorf("anthropic_api_key", "required when llm_provider=anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return configErrorf("openai_api_key", "required when llm_provider=openai")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return configErrorf("gemini_api_key", "required when llm_provider=gemini")
		}
	default:
		return configErrorf("llm_provider", "must be 'anthropic', 'openai' or 'gemini', got '%s'", c.LLMProvider)
	}

	if c.LLMMaxTokens < 256 {
		return configErrorf("llm_max_tokens", "'%d' must be >= 256", c.LLMMaxTokens)
	}
	if c.LLMRetryAttempts < 1 || c.LLMRetryAttempts > 10 {
		return configErrorf("llm_retry_attempts", "'%d' must be between 1 and 10", c.LLMRetryAttempts)
	}
	if c.SampleSize < 1 {
		return configErrorf("sample_size", "'%d' must be >= 1", c.SampleSize)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return configErrorf("external_http_timeout_seconds", "'%d' must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.HistoryRetentionDays < 1 {
		return configErrorf("history_retention_days", "'%d' must be >= 1", c.HistoryRetentionDays)
	}
	if s := strings.TrimSpace(c.HistoryPruneSchedule); c.HistoryPruneEnabled() {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(s); err != nil {
			return configErrorf("history_prune_schedule", "invalid cron expression '%s': %v", s, err)
		}
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return configErrorf("log_format", "must be 'console' or 'json', got '%s'", c.LogFormat)
	}
	if c.LLMGlossaryPath != "" {
		if err := validateGlossaryPath(c.LLMGlossaryPath); err != nil {
			return configErrorf("llm_glossary_path", "'%s': %v", c.LLMGlossaryPath, err)
		}
	}
	return nil
}

// ConcurrentSummaries reports whether the bug and feature summarizers may run
// in parallel.
func (c Config) ConcurrentSummaries() bool {
	return c.ConcurrentSummary == nil || *c.ConcurrentSummary
}

// IsAnalystID reports whether userID may run analyses. An empty allow-list
// admits everyone.
func (c Config) IsAnalystID(userID string) bool {
	if len(c.AnalystSlackIDs) == 0 {
		return true
	}
	for _, id := range c.AnalystSlackIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}

// HistoryPruneEnabled is false when history_prune_schedule is "off".
func (c Config) HistoryPruneEnabled() bool {
	s := strings.TrimSpace(c.HistoryPruneSchedule)
	return s != "" && !strings.EqualFold(s, "off")
}

// APIKey returns the credential of the configured provider.
func (c Config) APIKey() string {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return configErrorf(envKey, "invalid value '%s': %v", val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field **bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		enabled := strings.EqualFold(val, "true") || val == "1"
		*field = &enabled
	}
}

func validateGlossaryPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read glossary: %w", err)
	}
	var g struct {
		Terms []struct{} `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("parse glossary yaml: %w", err)
	}
	return nil
}
