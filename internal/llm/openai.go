package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/job-matcher/internal/tracing"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIClient implements Client on the chat completions API. BaseURL lets
// it talk to any compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cc := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cc), config: config}, nil
}

// GenerateContent generates text content using the specified model tier
func (c *OpenAIClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.complete(ctx, prompt, tier, false)
}

// GenerateJSON requests a json_object response format.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.complete(ctx, prompt, tier, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, tier ModelTier, jsonMode bool) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	ctx, span := tracing.Tracer("llm").Start(ctx, "openai.CreateChatCompletion")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", modelName),
		attribute.Bool("llm.json", jsonMode),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	req := openai.ChatCompletionRequest{
		Model:       modelName,
		Temperature: c.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		err = fmt.Errorf("failed to create chat completion: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", err
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices in response")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty completion")
	}
	return content, nil
}

// GetModel returns the model name for a tier
func (c *OpenAIClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP client holds no resources.
func (c *OpenAIClient) Close() error {
	return nil
}
