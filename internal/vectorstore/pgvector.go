package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/pgvector/pgvector-go"
)

// PGVector stores chunks in the resume_chunks table and ranks them with the
// pgvector cosine distance operator.
type PGVector struct {
	pool *pgxpool.Pool
	dims int
}

// NewPGVector creates the extension and table. The embedding column is
// sized to dims, so a changed embedder needs a fresh table.
func NewPGVector(ctx context.Context, pool *pgxpool.Pool, dims int) (*PGVector, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("pgvector needs a positive dimension, got %d", dims)
	}
	s := &PGVector{pool: pool, dims: dims}
	if _, err := pool.Exec(ctx, tableDDL(dims)); err != nil {
		return nil, fmt.Errorf("failed to create resume_chunks table: %w", err)
	}
	return s, nil
}

func tableDDL(dims int) string {
	return fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS resume_chunks (
    id TEXT PRIMARY KEY,
    resume_id TEXT NOT NULL,
    chunk_type TEXT NOT NULL,
    chunk_index INT,
    content TEXT NOT NULL,
    roles TEXT NOT NULL DEFAULT '',
    experience_level TEXT NOT NULL DEFAULT '',
    embedding vector(%d) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_resume_chunks_resume_id ON resume_chunks(resume_id);`, dims)
}

// Upsert writes all records in one batch.
func (s *PGVector) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		if err := checkDims(r.Vector, s.dims); err != nil {
			return err
		}
		c := r.Chunk
		batch.Queue(`
			INSERT INTO resume_chunks (id, resume_id, chunk_type, chunk_index, content, roles, experience_level, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				resume_id = EXCLUDED.resume_id,
				chunk_type = EXCLUDED.chunk_type,
				chunk_index = EXCLUDED.chunk_index,
				content = EXCLUDED.content,
				roles = EXCLUDED.roles,
				experience_level = EXCLUDED.experience_level,
				embedding = EXCLUDED.embedding
		`, c.ID, c.ResumeID, string(c.Type), c.Index, c.Text, c.Roles, c.ExperienceLevel, pgvector.NewVector(r.Vector))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert resume chunks: %w", err)
	}
	return nil
}

// Query returns the k chunks of resumeID closest to vector.
func (s *PGVector) Query(ctx context.Context, vector []float32, k int, resumeID string) ([]Neighbor, error) {
	if err := checkDims(vector, s.dims); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, resume_id, chunk_type, chunk_index, content, roles, experience_level,
		       embedding <=> $1 AS distance
		FROM resume_chunks
		WHERE resume_id = $2
		ORDER BY distance
		LIMIT $3
	`, pgvector.NewVector(vector), resumeID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query resume chunks: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var (
			n        Neighbor
			kind     string
			position *int32
		)
		if err := rows.Scan(&n.Chunk.ID, &n.Chunk.ResumeID, &kind, &position, &n.Chunk.Text,
			&n.Chunk.Roles, &n.Chunk.ExperienceLevel, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan resume chunk: %w", err)
		}
		n.Chunk.Type = types.ChunkType(kind)
		if position != nil {
			i := int(*position)
			n.Chunk.Index = &i
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Count returns how many chunks resumeID has.
func (s *PGVector) Count(ctx context.Context, resumeID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resume_chunks WHERE resume_id = $1`, resumeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count resume chunks: %w", err)
	}
	return n, nil
}

// DeleteResume removes every chunk of resumeID.
func (s *PGVector) DeleteResume(ctx context.Context, resumeID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resume_chunks WHERE resume_id = $1`, resumeID); err != nil {
		return fmt.Errorf("failed to delete resume chunks: %w", err)
	}
	return nil
}

// Close does nothing; the pool belongs to the caller.
func (s *PGVector) Close() error { return nil }
