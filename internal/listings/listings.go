// Package listings downloads the internship README and parses its HTML table
// into job listings.
package listings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/job-matcher/internal/fetch"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/rs/zerolog"
)

// SubListingPolicy decides what happens to rows whose company cell is a
// continuation arrow or empty.
type SubListingPolicy string

const (
	// SubListingCarryForward reuses the company of the previous row.
	SubListingCarryForward SubListingPolicy = "carry-forward"
	// SubListingSkip drops continuation rows.
	SubListingSkip SubListingPolicy = "skip"
)

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 40

// DefaultTimeout bounds the README download.
const DefaultTimeout = 10 * time.Second

const subListingMarker = "↳"

// ErrNoTable is returned when the document contains no <table>.
var ErrNoTable = errors.New("no table found")

// Options configures a Fetcher.
type Options struct {
	URL     string
	Timeout time.Duration
	Policy  SubListingPolicy
}

// Fetcher retrieves listings from a fixed document URL.
type Fetcher struct {
	url     string
	timeout time.Duration
	policy  SubListingPolicy
	log     zerolog.Logger
}

// NewFetcher creates a Fetcher. Empty options fall back to defaults.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Policy == "" {
		opts.Policy = SubListingCarryForward
	}
	return &Fetcher{
		url:     opts.URL,
		timeout: opts.Timeout,
		policy:  opts.Policy,
		log:     logger.With("listings"),
	}
}

// Fetch downloads the document and returns at most limit listings.
func (f *Fetcher) Fetch(ctx context.Context, limit int) ([]types.JobListing, error) {
	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Timeout = f.timeout

	res, err := fetch.URL(ctx, f.url, fetchOpts)
	if err != nil {
		return nil, err
	}

	jobs, err := Parse(strings.NewReader(res.HTML), limit, f.policy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listings from %s: %w", f.url, err)
	}

	f.log.Debug().Int("count", len(jobs)).Int("limit", limit).Msg("fetched listings")
	return jobs, nil
}

// FetchResult is Fetch with failures folded into a single error record.
func (f *Fetcher) FetchResult(ctx context.Context, limit int) types.ListingResult {
	jobs, err := f.Fetch(ctx, limit)
	if err != nil {
		f.log.Warn().Err(err).Msg("listing fetch failed")
		return types.ListingResult{Error: "Failed to fetch jobs: " + err.Error()}
	}
	return types.ListingResult{Listings: jobs}
}

// Parse extracts listings from the first table's body rows. Rows with fewer
// than four cells are skipped. A non-positive limit means DefaultLimit.
func Parse(r io.Reader, limit int, policy SubListingPolicy) ([]types.JobListing, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr")
	}

	jobs := make([]types.JobListing, 0, limit)
	lastCompany := ""

	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(jobs) >= limit {
			return false
		}

		cells := row.Find("td")
		if cells.Length() < 4 {
			return true
		}

		rawCompany := strings.TrimSpace(cells.Eq(0).Text())
		company := rawCompany
		if strings.Contains(rawCompany, subListingMarker) || rawCompany == "" {
			if policy == SubListingSkip {
				return true
			}
			company = lastCompany
		} else {
			lastCompany = rawCompany
		}
		if company == "" {
			return true
		}

		link := types.NoLink
		if href, ok := cells.Eq(3).Find("a").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			link = strings.TrimSpace(href)
		}

		jobs = append(jobs, types.JobListing{
			Company:  company,
			Role:     cellText(cells.Eq(1)),
			Location: cellText(cells.Eq(2)),
			Link:     link,
		})
		return true
	})

	return jobs, nil
}

// cellText joins the text of a cell, treating <br> as a separator.
func cellText(s *goquery.Selection) string {
	s.Find("br").ReplaceWithHtml(" ")
	return strings.Join(strings.Fields(s.Text()), " ")
}
