// Package research gathers public notes about a company from web search,
// optionally summarized by an LLM.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/prompts"
	"github.com/jonathan/job-matcher/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// ResultsPerQuery is how many search hits each query keeps.
const ResultsPerQuery = 3

// ErrNotConfigured is returned when search credentials are missing.
var ErrNotConfigured = errors.New("company research requires a search API key and engine id")

// Result is one search hit.
type Result struct {
	Title   string
	Link    string
	Snippet string
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// GoogleSearcher queries a Google Programmable Search Engine.
type GoogleSearcher struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogleSearcher creates a searcher for engine cx. Extra client options
// are passed to the API client.
func NewGoogleSearcher(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleSearcher, error) {
	if apiKey == "" || cx == "" {
		return nil, ErrNotConfigured
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleSearcher{svc: svc, cx: cx}, nil
}

// Search returns up to n hits for query.
func (g *GoogleSearcher) Search(ctx context.Context, query string, n int) ([]Result, error) {
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(n)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	out := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, Result{Title: item.Title, Link: item.Link, Snippet: strings.TrimSpace(item.Snippet)})
	}
	return out, nil
}

// Researcher produces notes about a company.
type Researcher struct {
	search Searcher
	llm    llm.Client
}

// NewResearcher creates a Researcher. client may be nil, in which case the
// notes are the raw search snippets.
func NewResearcher(search Searcher, client llm.Client) *Researcher {
	return &Researcher{search: search, llm: client}
}

func queries(company string) []string {
	return []string{
		fmt.Sprintf("%s engineering culture", company),
		fmt.Sprintf("%s software engineer interview process", company),
	}
}

// Research searches for company and returns notes. It fails only when
// every query fails.
func (r *Researcher) Research(ctx context.Context, company string) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", fmt.Errorf("company name is empty")
	}

	ctx, span := tracing.Tracer("research").Start(ctx, "Researcher.Research")
	defer span.End()
	span.SetAttributes(attribute.String("company", company))
	log := logger.Ctx(ctx).With().Str("company", company).Logger()

	var results []Result
	var lastErr error
	failed := 0
	seen := make(map[string]bool)
	qs := queries(company)
	for _, q := range qs {
		hits, err := r.search.Search(ctx, q, ResultsPerQuery)
		if err != nil {
			log.Warn().Err(err).Str("query", q).Msg("research query failed")
			lastErr = err
			failed++
			continue
		}
		for _, h := range hits {
			if h.Link != "" && seen[h.Link] {
				continue
			}
			seen[h.Link] = true
			results = append(results, h)
		}
	}
	if failed == len(qs) {
		tracing.RecordError(span, lastErr, tracing.ErrorTypeHTTP)
		return "", lastErr
	}
	span.SetAttributes(attribute.Int("results", len(results)))

	if len(results) == 0 {
		return fmt.Sprintf("No public information found for %s.", company), nil
	}

	digest := formatResults(results)
	if r.llm == nil {
		return digest, nil
	}

	prompt, err := prompts.Render(prompts.ResearchFile, "summarize-company", map[string]string{
		"Company": company,
		"Results": digest,
	})
	if err != nil {
		return "", err
	}
	summary, err := r.llm.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil || strings.TrimSpace(summary) == "" {
		log.Warn().Err(err).Msg("research summary failed, using search snippets")
		return digest, nil
	}
	return strings.TrimSpace(summary), nil
}

func formatResults(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s (%s)", r.Title, r.Snippet, r.Link)
	}
	return b.String()
}
