package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is a person known to the identity provider, keyed by its subject id.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resume status values.
const (
	ResumeStatusProcessing = "processing"
	ResumeStatusCompleted  = "completed"
	ResumeStatusFailed     = "failed"
)

// Resume is an uploaded resume and the outcome of processing it.
type Resume struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Filename  string          `json:"filename"`
	ObjectKey string          `json:"object_key"`
	Text      *string         `json:"text,omitempty"`
	Status    string          `json:"status"`
	Error     *string         `json:"error,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CachedPosting is a row of the posting cache.
type CachedPosting struct {
	URL       string     `json:"url"`
	Content   string     `json:"content"`
	FetchedAt time.Time  `json:"fetched_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
