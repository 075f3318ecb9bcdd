// Package orchestrator runs the job scan: fetch listings, fetch and score
// each posting, then decide which companies deserve a research pass.
package orchestrator

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/matching"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
	"go.opentelemetry.io/otel/attribute"
)

// Defaults used when Pipeline fields are left zero.
const (
	DefaultScanLimit   = 3
	DefaultConcurrency = 3
)

// ProgressEvent represents a progress update during a scan
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when scan progress occurs. Scan calls it from
// several goroutines at once.
type ProgressCallback func(event ProgressEvent)

// ListingSource returns the newest job listings.
type ListingSource interface {
	Fetch(ctx context.Context, limit int) ([]types.JobListing, error)
}

// PostingSource returns the cleaned text of a job posting.
type PostingSource interface {
	Fetch(ctx context.Context, url string) (*types.Posting, error)
}

// Annotator adds a human readable reason to a match result.
type Annotator interface {
	Annotate(ctx context.Context, res *types.MatchResult) error
}

// ScanInput identifies the resume a scan scores against.
type ScanInput struct {
	ResumeID   string
	ResumeText string
	Limit      int
}

// Pipeline fetches listings and scores each one.
type Pipeline struct {
	Listings    ListingSource
	Postings    PostingSource
	Matcher     matching.Strategy
	Narrator    Annotator
	Limit       int
	Concurrency int
	OnProgress  ProgressCallback
}

// NewPipeline wires a pipeline from the orchestrator settings. narrator may
// be nil.
func NewPipeline(cfg config.OrchestratorConfig, listings ListingSource, postings PostingSource, matcher matching.Strategy, narrator Annotator) *Pipeline {
	return &Pipeline{
		Listings:    listings,
		Postings:    postings,
		Matcher:     matcher,
		Narrator:    narrator,
		Limit:       cfg.ScanLimit,
		Concurrency: cfg.Concurrency,
	}
}

func (p *Pipeline) emit(step, category, message string, content any) {
	if p.OnProgress != nil {
		p.OnProgress(ProgressEvent{Step: step, Category: category, Message: message, Content: content})
	}
}

// Scan fetches the newest listings and scores each against the resume.
// Jobs run concurrently and each writes only its own slot, so one failure
// never aborts the batch. Matches come back sorted by score, highest first.
func (p *Pipeline) Scan(ctx context.Context, in ScanInput) *types.ScanReport {
	ctx, span := tracing.Tracer("orchestrator").Start(ctx, "pipeline.Scan")
	defer span.End()
	log := logger.Ctx(ctx)

	report := &types.ScanReport{Matches: []types.JobMatch{}, Research: map[string]string{}}

	limit := in.Limit
	if limit <= 0 {
		limit = p.Limit
	}
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	p.emit("listings", "ingestion", fmt.Sprintf("Fetching %d newest listings...", limit), nil)
	jobs, err := p.Listings.Fetch(ctx, limit)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		log.Error().Err(err).Msg("listing fetch failed")
		report.Error = fmt.Sprintf("Failed to fetch jobs: %v", err)
		return report
	}
	span.SetAttributes(attribute.Int("scan.jobs", len(jobs)))
	p.emit("listings", "ingestion", fmt.Sprintf("Found %d listings", len(jobs)), jobs)

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	slots := make([]types.JobMatch, len(jobs))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			slots[i] = p.scoreJob(ctx, job, in)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(slots, func(a, b types.JobMatch) int {
		return cmp.Compare(b.MatchDetails.Score, a.MatchDetails.Score)
	})
	report.Matches = slots

	log.Info().Int("jobs", len(slots)).Msg("scan complete")
	p.emit("scan", "matching", fmt.Sprintf("Scored %d jobs", len(slots)), nil)
	return report
}

func (p *Pipeline) scoreJob(ctx context.Context, job types.JobListing, in ScanInput) types.JobMatch {
	log := logger.Ctx(ctx).With().Str("company", job.Company).Str("link", job.Link).Logger()
	slot := types.JobMatch{
		Company:  job.Company,
		Role:     job.Role,
		Location: job.Location,
		Link:     job.Link,
	}
	fail := func(msg string) types.JobMatch {
		slot.Error = msg
		slot.MatchDetails = types.MatchDetails{Reason: msg, Evidence: []string{}, MissingSkills: []string{}}
		return slot
	}

	if !job.HasLink() {
		return fail("No application link available")
	}
	if err := ctx.Err(); err != nil {
		return fail(fmt.Sprintf("Scan cancelled: %v", err))
	}

	p.emit("scrape", "research", fmt.Sprintf("Scraping %s - %s", job.Company, job.Role), nil)
	posting, err := p.Postings.Fetch(ctx, job.Link)
	if err != nil {
		log.Warn().Err(err).Msg("posting fetch failed")
		return fail(fmt.Sprintf("Error scraping job posting: %v", err))
	}

	res := p.Matcher.Match(ctx, matching.Request{
		JobDescription: posting.Text,
		ResumeID:       in.ResumeID,
		ResumeText:     in.ResumeText,
	})
	if p.Narrator != nil {
		if err := p.Narrator.Annotate(ctx, res); err != nil {
			log.Warn().Err(err).Msg("narration failed")
		}
	}

	slot.MatchDetails = res.Details()
	slot.Error = res.Error
	p.emit("match", "matching", fmt.Sprintf("%s scored %.0f/100", job.Company, res.Score), slot)
	return slot
}
