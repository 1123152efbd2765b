package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiProvider embeds with the Gemini API
type GeminiProvider struct {
	client *genai.Client
	model  string
	dims   int
	logger *slog.Logger
}

// NewGeminiProvider creates a Gemini embeddings client
func NewGeminiProvider(ctx context.Context, apiKey, model string, dims int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required for embeddings")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	if dims <= 0 {
		dims = DefaultDimensions
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		dims:   dims,
		logger: slog.Default().With("component", "gemini_embeddings", "model", model),
	}, nil
}

func (p *GeminiProvider) Name() string    { return "gemini" }
func (p *GeminiProvider) Model() string   { return p.model }
func (p *GeminiProvider) Dimensions() int { return p.dims }

// Embed sends all inputs as one batch request
func (p *GeminiProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(inputs))
	for i, in := range inputs {
		contents[i] = genai.NewContentFromText(in, genai.RoleUser)
	}
	dims := int32(p.dims)

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
		TaskType:             "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings failed: %w", err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("gemini embeddings: got %d vectors for %d inputs", len(resp.Embeddings), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	p.logger.Debug("embedded batch", "inputs", len(inputs))
	return out, nil
}
