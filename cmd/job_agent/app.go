package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/job-matcher/internal/cache"
	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/db"
	"github.com/jonathan/job-matcher/internal/embedding"
	"github.com/jonathan/job-matcher/internal/fetch"
	"github.com/jonathan/job-matcher/internal/listings"
	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/matching"
	"github.com/jonathan/job-matcher/internal/narrator"
	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/research"
	"github.com/jonathan/job-matcher/internal/resume"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/internal/vectorstore"
)

// app builds collaborators on first use so each command only needs the
// credentials and backends it actually touches.
type app struct {
	cfg *config.Config

	database   *db.DB
	postings   *fetch.PostingFetcher
	llmClient  llm.Client
	embedder   embedding.Embedder
	store      vectorstore.Store
	researcher orchestrator.CompanyResearcher
	strategies map[string]matching.Strategy

	closers []io.Closer
}

func newApp(c *config.Config) *app {
	return &app{cfg: c, strategies: map[string]matching.Strategy{}}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Close releases everything built so far, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}

// DB connects and migrates on first call.
func (a *app) DB(ctx context.Context) (*db.DB, error) {
	if a.database != nil {
		return a.database, nil
	}
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	database, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	a.database = database
	a.closers = append(a.closers, closerFunc(func() error { database.Close(); return nil }))
	return database, nil
}

func (a *app) Listings() *listings.Fetcher {
	return listings.NewFetcher(listings.Options{
		URL:     a.cfg.Listings.URL,
		Timeout: a.cfg.Listings.Timeout,
		Policy:  listings.SubListingPolicy(a.cfg.Listings.SubListingPolicy),
	})
}

func (a *app) Postings(ctx context.Context) (*fetch.PostingFetcher, error) {
	if a.postings != nil {
		return a.postings, nil
	}

	var database *db.DB
	if a.cfg.Cache.Backend == "postgres" {
		var err error
		if database, err = a.DB(ctx); err != nil {
			return nil, err
		}
	}
	c, err := cache.New(ctx, a.cfg.Cache, database)
	if err != nil {
		return nil, fmt.Errorf("failed to create posting cache: %w", err)
	}
	a.closers = append(a.closers, c)

	renderer, err := fetch.NewRenderer(a.cfg.Fetch.Renderer, a.cfg.Fetch.BrowserTimeout, a.cfg.Fetch.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	a.postings = fetch.NewPostingFetcher(renderer, c, a.cfg.Cache.TTL)
	return a.postings, nil
}

func (a *app) LLM(ctx context.Context) (llm.Client, error) {
	if a.llmClient != nil {
		return a.llmClient, nil
	}
	if a.cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required (set OPENAI_API_KEY or llm.api_key)")
	}
	client, err := llm.NewClient(ctx, llm.FromSettings(a.cfg.LLM.Provider, a.cfg.LLM.BaseURL, a.cfg.LLM.Models), a.cfg.LLM.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.llmClient = client
	a.closers = append(a.closers, client)
	return client, nil
}

func (a *app) Embedder(ctx context.Context) (embedding.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	if a.cfg.Embedding.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required (set OPENAI_API_KEY or embedding.api_key)")
	}
	e, err := embedding.New(ctx, a.cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if c, ok := e.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.embedder = e
	return e, nil
}

// VectorStore is sized to the embedder's dimensions.
func (a *app) VectorStore(ctx context.Context) (vectorstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	e, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	if a.cfg.Vector.Backend == "pgvector" {
		database, err := a.DB(ctx)
		if err != nil {
			return nil, err
		}
		pool = database.Pool()
	}
	s, err := vectorstore.New(ctx, a.cfg.Vector, e.Dimensions(), pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	a.store = s
	a.closers = append(a.closers, s)
	return s, nil
}

// Strategy returns the named match strategy, or the configured one for "".
func (a *app) Strategy(ctx context.Context, name string) (matching.Strategy, error) {
	if name == "" {
		name = a.cfg.Matching.Strategy
	}
	if s, ok := a.strategies[name]; ok {
		return s, nil
	}

	var deps matching.Deps
	switch name {
	case types.StrategyVector:
		e, err := a.Embedder(ctx)
		if err != nil {
			return nil, err
		}
		s, err := a.VectorStore(ctx)
		if err != nil {
			return nil, err
		}
		deps.Embedder, deps.Store = e, s
	default:
		client, err := a.LLM(ctx)
		if err != nil {
			return nil, err
		}
		deps.LLM = client
	}

	s, err := matching.New(name, deps)
	if err != nil {
		return nil, err
	}
	a.strategies[name] = s
	return s, nil
}

// Strategies returns every strategy whose credentials are configured.
func (a *app) Strategies(ctx context.Context) map[string]matching.Strategy {
	out := map[string]matching.Strategy{}
	for _, name := range []string{types.StrategyLLM, types.StrategyVector} {
		s, err := a.Strategy(ctx, name)
		if err != nil {
			logger.Warn().Err(err).Str("strategy", name).Msg("match strategy unavailable")
			continue
		}
		out[name] = s
	}
	return out
}

// Narrator is nil unless matching.narrate is set and an LLM is available.
func (a *app) Narrator(ctx context.Context) orchestrator.Annotator {
	if !a.cfg.Matching.Narrate {
		return nil
	}
	client, err := a.LLM(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("narration disabled")
		return nil
	}
	return narrator.New(client)
}

// Researcher is nil when no search credentials are configured; the
// machine then records a failure note for each strong match.
func (a *app) Researcher(ctx context.Context) orchestrator.CompanyResearcher {
	if a.researcher != nil {
		return a.researcher
	}
	if a.cfg.Research.APIKey == "" || a.cfg.Research.CX == "" {
		logger.Warn().Msg("company research disabled: search credentials not configured")
		return nil
	}
	searcher, err := research.NewGoogleSearcher(ctx, a.cfg.Research.APIKey, a.cfg.Research.CX)
	if err != nil {
		logger.Warn().Err(err).Msg("company research disabled")
		return nil
	}
	var client llm.Client
	if c, err := a.LLM(ctx); err == nil {
		client = c
	}
	a.researcher = research.NewResearcher(searcher, client)
	return a.researcher
}

// machineFactory returns a constructor for per-run state machines so each
// run can carry its own progress callback.
func (a *app) machineFactory(ctx context.Context) (func(orchestrator.ProgressCallback) *orchestrator.Machine, error) {
	postings, err := a.Postings(ctx)
	if err != nil {
		return nil, err
	}
	matcher, err := a.Strategy(ctx, "")
	if err != nil {
		return nil, err
	}
	base := orchestrator.NewPipeline(a.cfg.Orchestrator, a.Listings(), postings, matcher, a.Narrator(ctx))
	researcher := a.Researcher(ctx)

	return func(progress orchestrator.ProgressCallback) *orchestrator.Machine {
		p := *base
		p.OnProgress = progress
		m := orchestrator.NewMachine(a.cfg.Orchestrator, &p, researcher)
		m.OnProgress = progress
		return m
	}, nil
}

// ResumeService wires the upload pipeline. Every upload is scanned by a
// machine without progress reporting.
func (a *app) ResumeService(ctx context.Context) (*resume.Service, resume.Queue, error) {
	database, err := a.DB(ctx)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := resume.NewBlobStore(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create blob store: %w", err)
	}
	queue, err := resume.NewQueue(a.cfg.Queue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create queue: %w", err)
	}
	a.closers = append(a.closers, queue)
	extractor, err := resume.NewPDFExtractor(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create PDF extractor: %w", err)
	}
	e, err := a.Embedder(ctx)
	if err != nil {
		return nil, nil, err
	}
	store, err := a.VectorStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	newMachine, err := a.machineFactory(ctx)
	if err != nil {
		return nil, nil, err
	}

	svc := resume.NewService(resume.Deps{
		Repo:      database,
		Blobs:     blobs,
		Queue:     queue,
		Extractor: extractor,
		Embedder:  e,
		Store:     store,
		Scanner:   newMachine(nil),
	})
	return svc, queue, nil
}

// authClient is shared by the JWKS verifier and the identity provider.
func (a *app) authClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
