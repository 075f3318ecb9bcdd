package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/tracing"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultOpenAIModel is the embedding model used when none is configured.
	DefaultOpenAIModel = string(openai.SmallEmbedding3)
	// DefaultOpenAIDimensions is the native size of DefaultOpenAIModel.
	DefaultOpenAIDimensions = 1536
)

// OpenAIOptions configures OpenAI.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAI embeds through the OpenAI embeddings endpoint or a compatible one.
type OpenAI struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI embedder.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultOpenAIDimensions
	}

	cc := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cc),
		model:  opts.Model,
		dims:   opts.Dimensions,
	}, nil
}

// Embed sends all texts in one request.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}

	ctx, span := tracing.Tracer("embedding").Start(ctx, "openai.CreateEmbeddings")
	defer span.End()
	span.SetAttributes(
		attribute.String("embedding.model", e.model),
		attribute.Int("embedding.batch", len(texts)),
	)

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dims != DefaultOpenAIDimensions {
		req.Dimensions = e.dims
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		err = fmt.Errorf("failed to create embeddings: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	if err := checkBatch(vectors, len(texts), e.dims); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the vector size.
func (e *OpenAI) Dimensions() int { return e.dims }
