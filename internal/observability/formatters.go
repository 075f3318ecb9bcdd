// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// shorten cuts s to n runes, marking the cut with "...".
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, shorten(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, shorten(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintListings outputs the fetched listings, one per line.
func (p *Printer) PrintListings(listings []types.JobListing) {
	if len(listings) == 0 {
		p.printBox("LISTINGS", "No listings found")
		return
	}

	var sb strings.Builder
	for i, l := range listings {
		fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, l.Company, l.Role)
		fmt.Fprintf(&sb, "   %s\n", l.Location)
		fmt.Fprintf(&sb, "   %s", l.Link)
		if i < len(listings)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(fmt.Sprintf("LISTINGS (%d)", len(listings)), sb.String())
}

// PrintPosting outputs the first lines of a cleaned posting.
func (p *Printer) PrintPosting(posting *types.Posting) {
	if posting == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "URL:       %s\n", posting.URL)
	fmt.Fprintf(&sb, "Platform:  %s\n", posting.Platform)
	fmt.Fprintf(&sb, "Cached:    %t\n", posting.FromCache)
	fmt.Fprintf(&sb, "Length:    %d chars\n\n", utf8.RuneCountInString(posting.Text))

	lines := strings.Split(posting.Text, "\n")
	count := min(len(lines), maxItemsToShow*2)
	sb.WriteString(strings.Join(lines[:count], "\n"))
	if len(lines) > count {
		fmt.Fprintf(&sb, "\n... and %d more lines", len(lines)-count)
	}

	p.printBox("JOB POSTING", sb.String())
}

// PrintMatchResult outputs a score with its reason and top sections.
func (p *Printer) PrintMatchResult(res *types.MatchResult) {
	if res == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Strategy: %s\n", res.Strategy)
	fmt.Fprintf(&sb, "Score:    %.0f/100\n", res.Score)
	if d := res.Details(); d.Reason != "" {
		fmt.Fprintf(&sb, "\n%s\n", d.Reason)
	}

	if len(res.MatchedSections) > 0 {
		sb.WriteString("\nMatched sections:\n")
		count := min(len(res.MatchedSections), maxItemsToShow)
		for i := 0; i < count; i++ {
			s := res.MatchedSections[i]
			fmt.Fprintf(&sb, "  • [%s %.0f%%] %s\n", s.Type, s.Relevance*100, strings.ReplaceAll(s.Text, "\n", " "))
		}
	}
	writeList(&sb, "Evidence", res.Evidence)
	writeList(&sb, "Missing", res.MissingSkills)

	p.printBox("MATCH RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", label)
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		fmt.Fprintf(sb, "  • %s\n", items[i])
	}
	if len(items) > maxItemsToShow {
		fmt.Fprintf(sb, "  ... and %d more\n", len(items)-maxItemsToShow)
	}
}

// PrintScanReport outputs the ranked matches followed by research notes.
func (p *Printer) PrintScanReport(report *types.ScanReport) {
	if report == nil {
		return
	}
	if report.Error != "" {
		p.printBox("SCAN FAILED", report.Error)
		return
	}

	var sb strings.Builder
	for i, m := range report.Matches {
		fmt.Fprintf(&sb, "#%d  %s - %s\n", i+1, m.Company, m.Role)
		if m.Error != "" {
			fmt.Fprintf(&sb, "    ⚠ %s\n", m.Error)
		} else {
			fmt.Fprintf(&sb, "    Score: %.0f/100\n", m.MatchDetails.Score)
			if m.MatchDetails.Reason != "" {
				fmt.Fprintf(&sb, "    %s\n", m.MatchDetails.Reason)
			}
		}
		if i < len(report.Matches)-1 {
			sb.WriteString("\n")
		}
	}
	if len(report.Matches) == 0 {
		sb.WriteString("No jobs scored")
	}
	p.printBox("RANKED MATCHES", strings.TrimSuffix(sb.String(), "\n"))

	for _, company := range sortedKeys(report.Research) {
		p.printBox("RESEARCH: "+company, report.Research[company])
	}
}

// PrintProgress writes one progress line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event orchestrator.ProgressEvent) {
	fmt.Fprintf(p.out, "[%s] %s\n", event.Step, event.Message)
}

// FormatReportMarkdown renders a scan report the way chat surfaces show it:
// one section per job, strongest match first, research notes last.
func FormatReportMarkdown(report *types.ScanReport) string {
	if report == nil {
		return ""
	}
	if report.Error != "" {
		return report.Error
	}
	if len(report.Matches) == 0 {
		return "No jobs were scored."
	}

	var sb strings.Builder
	for _, m := range report.Matches {
		if m.Error != "" {
			fmt.Fprintf(&sb, "## %s - %s (not scored)\n", m.Company, m.Role)
			fmt.Fprintf(&sb, "%s\n\n", m.Error)
			continue
		}
		fmt.Fprintf(&sb, "## %s - %s (Score: %.0f/100)\n", m.Company, m.Role, m.MatchDetails.Score)
		if m.Location != "" {
			fmt.Fprintf(&sb, "*%s*\n", m.Location)
		}
		fmt.Fprintf(&sb, "[Apply](%s)\n\n", m.Link)
		if m.MatchDetails.Reason != "" {
			fmt.Fprintf(&sb, "**Why it fits:** %s\n\n", m.MatchDetails.Reason)
		}
		if len(m.MatchDetails.MissingSkills) > 0 {
			fmt.Fprintf(&sb, "**Missing:** %s\n\n", strings.Join(m.MatchDetails.MissingSkills, ", "))
		}
		if notes, ok := report.Research[m.Company]; ok {
			fmt.Fprintf(&sb, "**Company research:** %s\n\n", notes)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
