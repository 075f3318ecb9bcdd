// Package resume stores uploaded resumes, turns them into embedded chunks
// and runs the job scan for each upload in the background.
package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonathan/job-matcher/internal/chunking"
	"github.com/jonathan/job-matcher/internal/db"
	"github.com/jonathan/job-matcher/internal/embedding"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/internal/vectorstore"
)

var (
	// ErrUnsupportedFile is returned for uploads that are not PDFs.
	ErrUnsupportedFile = errors.New("only PDF files are supported")
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("uploaded file is empty")
	// ErrNoResume is returned by Status when the user has never uploaded.
	ErrNoResume = errors.New("no resume found")
)

// Repository persists resume rows. *db.DB implements it.
type Repository interface {
	CreateResume(ctx context.Context, id uuid.UUID, userID, filename, objectKey string) (*db.Resume, error)
	GetLatestResumeByUser(ctx context.Context, userID string) (*db.Resume, error)
	SetResumeText(ctx context.Context, id uuid.UUID, text string) error
	CompleteResume(ctx context.Context, id uuid.UUID, results any) error
	FailResume(ctx context.Context, id uuid.UUID, message string) error
}

// Scanner runs the job scan for one resume.
type Scanner interface {
	Run(ctx context.Context, in orchestrator.ScanInput) (*types.ScanReport, error)
}

// Deps are the collaborators of a Service. Scanner may be nil when only the
// structured ingest path is used.
type Deps struct {
	Repo      Repository
	Blobs     BlobStore
	Queue     Queue
	Extractor TextExtractor
	Embedder  embedding.Embedder
	Store     vectorstore.Store
	Scanner   Scanner
}

// Service owns the resume lifecycle: upload, processing and status.
type Service struct {
	Deps
}

// NewService creates a Service.
func NewService(deps Deps) *Service {
	return &Service{Deps: deps}
}

// UploadResult is returned once an upload is accepted.
type UploadResult struct {
	Message  string `json:"message"`
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// Status is the processing state of a user's latest resume.
type Status struct {
	Status   string            `json:"status"`
	ResumeID string            `json:"resume_id"`
	Matches  []types.JobMatch  `json:"matches"`
	Research map[string]string `json:"research"`
	Error    string            `json:"error,omitempty"`
}

// IsPDF reports whether filename has a .pdf extension.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// Upload stores the file, records a processing row and queues the job.
func (s *Service) Upload(ctx context.Context, userID, filename string, data []byte) (*UploadResult, error) {
	ctx, span := tracing.Tracer("resume").Start(ctx, "Service.Upload")
	defer span.End()

	filename = filepath.Base(filename)
	if !IsPDF(filename) {
		return nil, ErrUnsupportedFile
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	id := uuid.New()
	key := ObjectKey(userID, id.String(), filename)
	span.SetAttributes(attribute.String("resume.id", id.String()), attribute.Int("resume.bytes", len(data)))

	if err := s.Blobs.Put(ctx, key, data, PDFContentType); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("failed to store resume: %w", err)
	}
	if _, err := s.Repo.CreateResume(ctx, id, userID, filename, key); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	job := Job{ResumeID: id.String(), UserID: userID, ObjectKey: key, Filename: filename}
	if err := s.Queue.Publish(ctx, job); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeQueue)
		if ferr := s.Repo.FailResume(ctx, id, "could not queue resume for processing"); ferr != nil {
			logger.Ctx(ctx).Error().Err(ferr).Str("resume_id", id.String()).Msg("failed to mark resume failed")
		}
		return nil, fmt.Errorf("failed to queue resume: %w", err)
	}

	logger.Ctx(ctx).Info().Str("resume_id", id.String()).Str("user_id", userID).Msg("resume queued")
	return &UploadResult{Message: "Resume uploaded; processing started", ID: id.String(), Filename: filename}, nil
}

// Process handles one queued upload. Any failure is recorded on the resume
// row before it is returned.
func (s *Service) Process(ctx context.Context, job Job) error {
	ctx, span := tracing.Tracer("resume").Start(ctx, "Service.Process")
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", job.ResumeID))
	log := logger.Ctx(ctx).With().Str("resume_id", job.ResumeID).Logger()

	id, err := uuid.Parse(job.ResumeID)
	if err != nil {
		return fmt.Errorf("invalid resume id %q: %w", job.ResumeID, err)
	}
	fail := func(stage string, err error, errType tracing.ErrorType) error {
		err = fmt.Errorf("%s: %w", stage, err)
		tracing.RecordError(span, err, errType)
		log.Error().Err(err).Msg("resume processing failed")
		if ferr := s.Repo.FailResume(ctx, id, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to mark resume failed")
		}
		return err
	}

	data, err := s.Blobs.Get(ctx, job.ObjectKey)
	if err != nil {
		return fail("download", err, tracing.ErrorTypeInternal)
	}
	text, err := s.Extractor.Extract(ctx, data, job.Filename)
	if err != nil {
		return fail("extract text", err, tracing.ErrorTypeInternal)
	}
	if err := s.Repo.SetResumeText(ctx, id, text); err != nil {
		return fail("save text", err, tracing.ErrorTypeDB)
	}

	n, err := s.IndexText(ctx, id.String(), text)
	if err != nil {
		return fail("index", err, tracing.ErrorTypeVectorDB)
	}
	log.Info().Int("chunks", n).Msg("resume indexed")

	report := &types.ScanReport{Matches: []types.JobMatch{}, Research: map[string]string{}}
	if s.Scanner != nil {
		report, err = s.Scanner.Run(ctx, orchestrator.ScanInput{ResumeID: id.String(), ResumeText: text})
		if err != nil {
			if report == nil || ctx.Err() != nil {
				return fail("scan", err, tracing.ErrorTypeInternal)
			}
			log.Warn().Err(err).Msg("scan stopped early; keeping partial report")
		}
	}

	if err := s.Repo.CompleteResume(ctx, id, report); err != nil {
		return fail("save results", err, tracing.ErrorTypeDB)
	}
	log.Info().Int("matches", len(report.Matches)).Int("researched", len(report.Research)).Msg("resume processed")
	return nil
}

// Ingest stores a structured resume. An empty resumeID gets a fresh one.
func (s *Service) Ingest(ctx context.Context, resumeID string, req types.IngestRequest) (*types.IngestResult, error) {
	ctx, span := tracing.Tracer("resume").Start(ctx, "Service.Ingest")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if resumeID == "" {
		resumeID = uuid.NewString()
	}
	n, err := s.index(ctx, resumeID, req.Resume, req.Preferences)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}
	return &types.IngestResult{ResumeID: resumeID, ChunksStored: n}, nil
}

// IndexText chunks plain resume text, which carries no preferences, and
// stores it under resumeID.
func (s *Service) IndexText(ctx context.Context, resumeID, text string) (int, error) {
	return s.index(ctx, resumeID, chunking.ParseResumeText(text), types.Preferences{})
}

// index replaces every stored chunk of resumeID.
func (s *Service) index(ctx context.Context, resumeID string, r types.Resume, prefs types.Preferences) (int, error) {
	chunks := chunking.ChunkResume(resumeID, r, prefs)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("resume has no text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed resume: %w", err)
	}
	records, err := vectorstore.Records(chunks, vectors)
	if err != nil {
		return 0, err
	}

	if err := s.Store.DeleteResume(ctx, resumeID); err != nil {
		return 0, fmt.Errorf("failed to clear old chunks: %w", err)
	}
	if err := s.Store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	return len(records), nil
}

// Status returns the state of the user's latest upload.
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	r, err := s.Repo.GetLatestResumeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNoResume
	}

	st := &Status{
		Status:   r.Status,
		ResumeID: r.ID.String(),
		Matches:  []types.JobMatch{},
		Research: map[string]string{},
	}
	if r.Error != nil {
		st.Error = *r.Error
	}
	if len(r.Results) > 0 {
		var report types.ScanReport
		if err := json.Unmarshal(r.Results, &report); err != nil {
			return nil, fmt.Errorf("failed to decode resume results: %w", err)
		}
		if report.Matches != nil {
			st.Matches = report.Matches
		}
		if report.Research != nil {
			st.Research = report.Research
		}
		if st.Error == "" {
			st.Error = report.Error
		}
	}
	return st, nil
}

// Text returns the latest extracted resume text of a user, if any.
func (s *Service) Text(ctx context.Context, userID string) (string, string, error) {
	r, err := s.Repo.GetLatestResumeByUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if r == nil || r.Text == nil {
		return "", "", ErrNoResume
	}
	return r.ID.String(), *r.Text, nil
}
