// Package embedding turns entity text into vectors for the graph's vector
// indexes and for query-time retrieval.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// DefaultDimensions is the vector size used when none is configured
const DefaultDimensions = 384

// Provider defines an embeddings provider. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Name returns the provider name, e.g. "openai"
	Name() string
	// Model identifies the model, used in cache keys
	Model() string
	// Dimensions returns the vector size this provider produces
	Dimensions() int
	// Embed returns one vector per input, in input order
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Config selects a provider
type Config struct {
	Provider   string // "openai", "gemini", "local"
	Model      string
	Dimensions int
	OpenAIKey  string
	GeminiKey  string
	BaseURL    string
}

// New builds the configured provider, wrapped to the configured dimensions
func New(ctx context.Context, cfg Config) (Provider, error) {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		p, err = NewOpenAIProvider(cfg.OpenAIKey, cfg.Model, dims, cfg.BaseURL)
	case "gemini", "google":
		p, err = NewGeminiProvider(ctx, cfg.GeminiKey, cfg.Model, dims)
	case "local", "hash", "":
		p = NewHashProvider(dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WrapToDims(p, dims), nil
}
