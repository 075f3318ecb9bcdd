// Package vectorstore persists resume chunk embeddings and answers nearest
// neighbour queries scoped to one resume.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/types"
)

var (
	// ErrDimensionMismatch is returned when a vector has the wrong size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNoDatabase is returned when the pgvector backend has no pool.
	ErrNoDatabase = errors.New("pgvector backend requires a database connection")
)

// Record is one stored chunk with its embedding.
type Record struct {
	Chunk  types.ResumeChunk
	Vector []float32
}

// Neighbor is a query hit. Distance is cosine distance in [0, 2].
type Neighbor struct {
	Chunk    types.ResumeChunk
	Distance float64
}

// Store is a vector index partitioned by resume id.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, k int, resumeID string) ([]Neighbor, error)
	Count(ctx context.Context, resumeID string) (int, error)
	DeleteResume(ctx context.Context, resumeID string) error
	Close() error
}

// New builds the store selected by cfg. pool is only used by pgvector.
func New(ctx context.Context, cfg config.VectorConfig, dims int, pool *pgxpool.Pool) (Store, error) {
	switch cfg.Backend {
	case "qdrant", "":
		return NewQdrant(ctx, QdrantOptions{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Dimensions: dims,
			Timeout:    cfg.Qdrant.Timeout,
		})
	case "pgvector":
		if pool == nil {
			return nil, ErrNoDatabase
		}
		return NewPGVector(ctx, pool, dims)
	case "memory":
		return NewMemory(dims), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

// Records pairs chunks with their embeddings.
func Records(chunks []types.ResumeChunk, vectors [][]float32) ([]Record, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	out := make([]Record, len(chunks))
	for i := range chunks {
		out[i] = Record{Chunk: chunks[i], Vector: vectors[i]}
	}
	return out, nil
}

func checkDims(vector []float32, dims int) error {
	if dims > 0 && len(vector) != dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dims)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
