package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintListings(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintListings([]types.JobListing{
		{Company: "Acme", Role: "SWE Intern", Location: "SF", Link: "https://acme.example/1"},
		{Company: "Globex", Role: "Data Intern", Location: "NYC", Link: types.NoLink},
	})
	output := buf.String()

	assert.Contains(t, output, "LISTINGS (2)")
	assert.Contains(t, output, "1. Acme - SWE Intern")
	assert.Contains(t, output, "2. Globex - Data Intern")
	assert.Contains(t, output, types.NoLink)
}

func TestPrintListings_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintListings(nil)
	assert.Contains(t, buf.String(), "No listings found")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 200))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth, line)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrintPosting(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	lines := make([]string, 15)
	for i := range lines {
		lines[i] = "requirement line"
	}
	p.PrintPosting(&types.Posting{URL: "https://x.example", Platform: "greenhouse", Text: strings.Join(lines, "\n")})
	output := buf.String()

	assert.Contains(t, output, "JOB POSTING")
	assert.Contains(t, output, "greenhouse")
	assert.Contains(t, output, "... and 5 more lines")

	buf.Reset()
	p.PrintPosting(nil)
	assert.Empty(t, buf.String())
}

func TestPrintMatchResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMatchResult(&types.MatchResult{
		Strategy: types.StrategyVector,
		Score:    72.4,
		Message:  "Strong Go overlap",
		MatchedSections: []types.MatchedSection{
			{Text: "Skills: Go, gRPC", Type: types.ChunkSkills, Relevance: 0.91},
		},
		MissingSkills: []string{"Kubernetes"},
	})
	output := buf.String()

	assert.Contains(t, output, "MATCH RESULT")
	assert.Contains(t, output, "72/100")
	assert.Contains(t, output, "Strong Go overlap")
	assert.Contains(t, output, "91%")
	assert.Contains(t, output, "Kubernetes")
}

func report() *types.ScanReport {
	return &types.ScanReport{
		Matches: []types.JobMatch{
			{
				Company: "Acme", Role: "SWE Intern", Location: "SF", Link: "https://acme.example/1",
				MatchDetails: types.MatchDetails{Score: 88, Reason: "Go backend work", MissingSkills: []string{"Rust"}},
			},
			{
				Company: "Globex", Role: "Data Intern", Link: "https://globex.example/1",
				Error: "Error scraping job posting: 404",
			},
		},
		Research: map[string]string{"Acme": "Small platform team."},
	}
}

func TestPrintScanReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScanReport(report())
	output := buf.String()

	assert.Contains(t, output, "RANKED MATCHES")
	assert.Contains(t, output, "#1  Acme - SWE Intern")
	assert.Contains(t, output, "88/100")
	assert.Contains(t, output, "⚠ Error scraping job posting")
	assert.Contains(t, output, "RESEARCH: Acme")
}

func TestPrintScanReport_Error(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintScanReport(&types.ScanReport{Error: "Failed to fetch jobs: 503"})
	assert.Contains(t, buf.String(), "SCAN FAILED")
	assert.NotContains(t, buf.String(), "RANKED MATCHES")
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintProgress(orchestrator.ProgressEvent{Step: "scrape", Message: "Scraping Acme"})
	assert.Equal(t, "[scrape] Scraping Acme\n", buf.String())
}

func TestFormatReportMarkdown(t *testing.T) {
	out := FormatReportMarkdown(report())

	assert.True(t, strings.HasPrefix(out, "## Acme - SWE Intern (Score: 88/100)"))
	assert.Contains(t, out, "[Apply](https://acme.example/1)")
	assert.Contains(t, out, "**Why it fits:** Go backend work")
	assert.Contains(t, out, "**Missing:** Rust")
	assert.Contains(t, out, "**Company research:** Small platform team.")
	assert.Contains(t, out, "## Globex - Data Intern (not scored)")

	assert.Equal(t, "No jobs were scored.", FormatReportMarkdown(&types.ScanReport{}))
	assert.Equal(t, "boom", FormatReportMarkdown(&types.ScanReport{Error: "boom"}))
	assert.Empty(t, FormatReportMarkdown(nil))
}
