package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient generates completions with the official OpenAI SDK
type OpenAIClient struct {
	client      openai.Client
	model       openai.ChatModel
	temperature float64
	limiter     *RateLimiter
	logger      *slog.Logger
}

// NewOpenAIClient creates a chat completion client. baseURL is optional and
// points the client at a compatible endpoint.
func NewOpenAIClient(apiKey, model string, temperature float64, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = DefaultModel(ProviderOpenAI)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL), option.WithMaxRetries(0))
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       openai.ChatModel(model),
		temperature: temperature,
		logger:      slog.Default().With("component", "openai", "model", model),
	}, nil
}

func (c *OpenAIClient) Provider() Provider { return ProviderOpenAI }

func (c *OpenAIClient) Model() string { return string(c.model) }

// Complete sends a system and user message and returns the first choice
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, estimateTokens(systemPrompt, userPrompt)); err != nil {
			return "", err
		}
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       c.model,
		Temperature: openai.Float(c.temperature),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	text := completion.Choices[0].Message.Content
	c.logger.Debug("openai completion",
		"prompt_length", len(userPrompt),
		"response_length", len(text),
		"total_tokens", completion.Usage.TotalTokens)
	return text, nil
}
