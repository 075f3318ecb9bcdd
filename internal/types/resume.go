package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ChunkType tags a resume chunk with its semantic role.
type ChunkType string

const (
	ChunkFullText   ChunkType = "full_text"
	ChunkSkills     ChunkType = "skills"
	ChunkExperience ChunkType = "experience"
	ChunkProject    ChunkType = "project"
)

// Resume is the structured resume accepted by the ingest path.
type Resume struct {
	Text       string   `json:"text" validate:"required"`
	Skills     []string `json:"skills,omitempty"`
	Experience []string `json:"experience,omitempty"`
	Projects   []string `json:"projects,omitempty"`
}

// Preferences describes what the candidate is looking for.
type Preferences struct {
	Role            []string `json:"role" validate:"required,min=1"`
	ExperienceLevel string   `json:"experience_level" validate:"required"`
	TechStack       []string `json:"tech_stack,omitempty"`
	Locations       []string `json:"locations,omitempty"`
}

// IngestRequest is the body of the structured resume route.
type IngestRequest struct {
	Resume      Resume      `json:"resume" validate:"required"`
	Preferences Preferences `json:"preferences" validate:"required"`
}

// Validate checks required fields.
func (r *IngestRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid resume request: %w", err)
	}
	return nil
}

// ResumeChunk is one embeddable piece of a resume. Chunks are immutable
// once stored.
type ResumeChunk struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	Type            ChunkType `json:"chunk_type"`
	ResumeID        string    `json:"resume_id"`
	Index           *int      `json:"index,omitempty"`
	Roles           string    `json:"roles,omitempty"`
	ExperienceLevel string    `json:"experience_level,omitempty"`
}

// JobChunk is one section of a job description.
type JobChunk struct {
	Text string `json:"text"`
}

// ResumeStatus is the lifecycle of an uploaded resume.
type ResumeStatus string

const (
	ResumeProcessing ResumeStatus = "processing"
	ResumeCompleted  ResumeStatus = "completed"
	ResumeFailed     ResumeStatus = "failed"
)

// IngestResult is returned after a structured resume is stored.
type IngestResult struct {
	ResumeID     string `json:"resume_id"`
	ChunksStored int    `json:"chunks_stored"`
}
