package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const resumeColumns = `id, user_id, filename, object_key, text, status, error, results, created_at, updated_at`

func scanResume(row pgx.Row) (*Resume, error) {
	var r Resume
	var results []byte
	err := row.Scan(&r.ID, &r.UserID, &r.Filename, &r.ObjectKey, &r.Text,
		&r.Status, &r.Error, &results, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if results != nil {
		r.Results = json.RawMessage(results)
	}
	return &r, nil
}

// CreateResume inserts a resume row in the processing state.
func (db *DB) CreateResume(ctx context.Context, id uuid.UUID, userID, filename, objectKey string) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`INSERT INTO resumes (id, user_id, filename, object_key, status)
		 VALUES ($1, $2, $3, $4, 'processing')
		 RETURNING `+resumeColumns,
		id, userID, filename, objectKey,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resume: %w", err)
	}
	return r, nil
}

// GetResume returns a resume by id, or nil if absent.
func (db *DB) GetResume(ctx context.Context, id uuid.UUID) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return r, nil
}

// GetLatestResumeByUser returns the user's most recent upload, or nil.
func (db *DB) GetLatestResumeByUser(ctx context.Context, userID string) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest resume: %w", err)
	}
	return r, nil
}

// SetResumeText stores the extracted text.
func (db *DB) SetResumeText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE resumes SET text = $1, updated_at = NOW() WHERE id = $2`, text, id)
	if err != nil {
		return fmt.Errorf("failed to set resume text: %w", err)
	}
	return nil
}

// CompleteResume stores results and marks the resume completed.
func (db *DB) CompleteResume(ctx context.Context, id uuid.UUID, results any) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal resume results: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE resumes SET status = 'completed', results = $1, error = NULL, updated_at = NOW()
		 WHERE id = $2`, payload, id)
	if err != nil {
		return fmt.Errorf("failed to complete resume: %w", err)
	}
	return nil
}

// FailResume marks the resume failed with a message.
func (db *DB) FailResume(ctx context.Context, id uuid.UUID, message string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE resumes SET status = 'failed', error = $1, updated_at = NOW() WHERE id = $2`,
		message, id)
	if err != nil {
		return fmt.Errorf("failed to mark resume failed: %w", err)
	}
	return nil
}
