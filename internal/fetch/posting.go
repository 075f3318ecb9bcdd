package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/job-matcher/internal/cache"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultCacheTTL is how long a cleaned posting is reused.
const DefaultCacheTTL = 24 * time.Hour

// ErrEmptyPosting is returned when cleaning leaves no text.
var ErrEmptyPosting = errors.New("posting has no readable content")

// PostingFetcher renders job postings, cleans them and memoizes the result
// by URL.
type PostingFetcher struct {
	renderer Renderer
	cache    cache.Cache
	ttl      time.Duration
}

// NewPostingFetcher creates a fetcher. A nil cache disables memoization.
func NewPostingFetcher(renderer Renderer, c cache.Cache, ttl time.Duration) *PostingFetcher {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl < 0 {
		ttl = DefaultCacheTTL
	}
	return &PostingFetcher{renderer: renderer, cache: c, ttl: ttl}
}

// Fetch returns the cleaned posting at url. Cache failures are logged and
// otherwise ignored.
func (f *PostingFetcher) Fetch(ctx context.Context, url string) (*types.Posting, error) {
	ctx, span := tracing.Tracer("fetch").Start(ctx, "PostingFetcher.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	log := logger.Ctx(ctx)
	url = strings.TrimSpace(url)
	if err := validateURL(url); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, err
	}
	platform := DetectPlatform(url)

	cached, ok, err := f.cache.Get(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("posting cache lookup failed")
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &types.Posting{
			URL:       url,
			Text:      cached,
			Platform:  string(platform),
			FromCache: true,
		}, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	html, err := f.renderer.Render(ctx, url)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, err
	}

	raw, err := HTMLToText(html, platform)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, &Error{URL: url, Message: "failed to extract text", Cause: err}
	}

	text := Clean(raw)
	if text == "" {
		return nil, &Error{URL: url, Message: "empty posting", Cause: ErrEmptyPosting}
	}

	if err := f.cache.Put(ctx, url, text, f.ttl); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("posting cache store failed")
	}

	log.Debug().Str("url", url).Str("platform", string(platform)).
		Int("raw_len", len(raw)).Int("clean_len", len(text)).Msg("fetched posting")

	return &types.Posting{
		URL:       url,
		RawText:   raw,
		Text:      text,
		Platform:  string(platform),
		FetchedAt: time.Now(),
	}, nil
}

// FetchInline returns the cleaned text, or an error message in its place.
// Only tool surfaces that must return a string use this.
func (f *PostingFetcher) FetchInline(ctx context.Context, url string) string {
	p, err := f.Fetch(ctx, url)
	if err != nil {
		return fmt.Sprintf("Error scraping job posting: %v", err)
	}
	return p.Text
}

// Invalidate drops url from the cache.
func (f *PostingFetcher) Invalidate(ctx context.Context, url string) error {
	return f.cache.Evict(ctx, strings.TrimSpace(url))
}

// IsInlineError reports whether text came from FetchInline's failure path.
func IsInlineError(text string) bool {
	return strings.HasPrefix(text, "Error scraping job posting:")
}
