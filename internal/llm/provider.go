package llm

import "fmt"

// ProviderConfig is the subset of application config NewCompleter needs.
type ProviderConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
	RetryAttempts  int
}

// NewCompleter builds the Completer for the configured provider.
func NewCompleter(cfg ProviderConfig, opts ...Option) (Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "openai", "deepseek", "openrouter", "":
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "deepseek":
			baseURL = DeepSeekURL
		case "openrouter":
			baseURL = OpenRouterURL
		default:
			baseURL = OpenAIURL
		}
	}
	if cfg.RetryAttempts > 0 {
		opts = append([]Option{WithRetryMaxAttempts(cfg.RetryAttempts)}, opts...)
	}
	return NewClient(Config{
		APIKey:         cfg.APIKey,
		BaseURL:        baseURL,
		Model:          cfg.Model,
		Title:          "worklog",
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, opts...), nil
}
