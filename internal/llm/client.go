// Package llm wraps the text-generation providers used to answer questions
// over retrieved graph context.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Provider names a generation backend
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

// Generator produces one completion for a system and user prompt
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Provider() Provider
	Model() string
}

// Config selects and configures a generation provider
type Config struct {
	Provider    string
	OpenAIKey   string
	GeminiKey   string
	Model       string
	Temperature float64
	BaseURL     string
}

// DefaultModel returns the model used when none is configured
func DefaultModel(p Provider) string {
	switch p {
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	}
	return ""
}

// NewGenerator builds the configured provider. Provider resolution order is
// cfg.Provider, LLM_PROVIDER, then whichever key is present (OpenAI first).
// limiter may be nil.
func NewGenerator(ctx context.Context, cfg Config, limiter *RateLimiter) (Generator, error) {
	logger := slog.Default().With("component", "llm")

	provider := cfg.Provider
	if provider == "" {
		provider = os.Getenv("LLM_PROVIDER")
	}
	if provider == "" {
		switch {
		case cfg.OpenAIKey != "":
			provider = string(ProviderOpenAI)
		case cfg.GeminiKey != "":
			provider = string(ProviderGemini)
		default:
			return nil, fmt.Errorf("no generation provider configured: set OPENAI_API_KEY or GEMINI_API_KEY")
		}
	}

	switch Provider(provider) {
	case ProviderOpenAI:
		c, err := NewOpenAIClient(cfg.OpenAIKey, cfg.Model, cfg.Temperature, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		c.limiter = limiter
		logger.Info("openai generator initialized", "model", c.Model())
		return c, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.GeminiKey, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		c.limiter = limiter
		return c, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", provider)
	}
}

// estimateTokens is the rough 4-characters-per-token rule used for quota
// accounting before a call is made.
func estimateTokens(parts ...string) int64 {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return int64(n/4 + 1)
}
