package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiModel      = "text-embedding-004"
	DefaultGeminiDimensions = 768
)

// Gemini embeds with BatchEmbedContents.
type Gemini struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGemini creates a Gemini embedder. Close releases the client.
func NewGemini(ctx context.Context, apiKey, model string, dims int) (*Gemini, error) {
	if apiKey == "" {
		return nil, llm.ErrNoAPIKey
	}
	// The OpenAI default model name may be left in config when switching.
	if model == "" || model == DefaultOpenAIModel {
		model = DefaultGeminiModel
	}
	if dims <= 0 || dims == DefaultOpenAIDimensions {
		dims = DefaultGeminiDimensions
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, dims: dims}, nil
}

// Embed sends all texts in one batch.
func (e *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}

	ctx, span := tracing.Tracer("embedding").Start(ctx, "gemini.BatchEmbedContents")
	defer span.End()
	span.SetAttributes(
		attribute.String("embedding.model", e.model),
		attribute.Int("embedding.batch", len(texts)),
	)

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		err = fmt.Errorf("failed to embed contents: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, emb.Values)
	}
	if err := checkBatch(vectors, len(texts), e.dims); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the vector size.
func (e *Gemini) Dimensions() int { return e.dims }

// Close releases the underlying client.
func (e *Gemini) Close() error { return e.client.Close() }
