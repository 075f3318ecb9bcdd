package matching

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/job-matcher/internal/chunking"
	"github.com/jonathan/job-matcher/internal/embedding"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// MinJobDescriptionChars rejects descriptions too short to score.
	MinJobDescriptionChars = 50
	// NeighborsPerChunk is how many resume chunks each job chunk retrieves.
	NeighborsPerChunk = 5

	// NoResumeMessage is reported when the resume id has no stored chunks.
	NoResumeMessage = "No resume found for this ID. Please upload a resume first."
	// ShortDescriptionError is reported for empty or short descriptions.
	ShortDescriptionError = "Job description is empty or too short to match"

	queryConcurrency = 4
)

// VectorMatcher compares embedded job sections with stored resume chunks.
type VectorMatcher struct {
	embedder embedding.Embedder
	store    vectorstore.Store
}

// NewVectorMatcher creates a VectorMatcher.
func NewVectorMatcher(e embedding.Embedder, s vectorstore.Store) *VectorMatcher {
	return &VectorMatcher{embedder: e, store: s}
}

// Name returns "vector".
func (m *VectorMatcher) Name() string { return types.StrategyVector }

// Match scores req.JobDescription against the chunks of req.ResumeID.
func (m *VectorMatcher) Match(ctx context.Context, req Request) *types.MatchResult {
	ctx, span := tracing.Tracer("matching").Start(ctx, "VectorMatcher.Match")
	defer span.End()
	span.SetAttributes(attribute.String("resume_id", req.ResumeID))

	res := newResult(types.StrategyVector)
	log := logger.Ctx(ctx).With().Str("strategy", "vector").Str("resume_id", req.ResumeID).Logger()

	desc := strings.TrimSpace(req.JobDescription)
	if utf8.RuneCountInString(desc) < MinJobDescriptionChars {
		res.Error = ShortDescriptionError
		return res
	}

	count, err := m.store.Count(ctx, req.ResumeID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		log.Warn().Err(err).Msg("resume chunk count failed")
		res.Error = err.Error()
		return res
	}
	if count == 0 {
		res.Message = NoResumeMessage
		return res
	}

	chunks := chunking.ChunkJobDescription(desc)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	span.SetAttributes(attribute.Int("job_chunks", len(texts)))

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		log.Warn().Err(err).Msg("job chunk embedding failed")
		res.Error = err.Error()
		return res
	}

	hits := make([][]vectorstore.Neighbor, len(vectors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queryConcurrency)
	for i, v := range vectors {
		g.Go(func() error {
			n, err := m.store.Query(gctx, v, NeighborsPerChunk, req.ResumeID)
			hits[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		log.Warn().Err(err).Msg("vector query failed")
		res.Error = err.Error()
		return res
	}

	var scores []float64
	var sections []types.MatchedSection
	for _, group := range hits {
		for _, n := range group {
			sim := BoostSkills(DistanceToSimilarity(n.Distance), n.Chunk.Type)
			scores = append(scores, sim)
			sections = append(sections, types.MatchedSection{Text: n.Chunk.Text, Type: n.Chunk.Type, Relevance: sim})
		}
	}

	res.Score = Aggregate(scores)
	res.MatchedSections = DedupeSections(sections, MaxSections)
	span.SetAttributes(attribute.Float64("score", res.Score))
	log.Debug().Float64("score", res.Score).Int("hits", len(scores)).Msg("vector match scored")
	return res
}
