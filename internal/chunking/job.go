package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/job-matcher/internal/types"
)

const (
	// MaxJobChunks bounds how many sections one description yields.
	MaxJobChunks = 8
	// MaxJobChunkChars bounds the size of one section.
	MaxJobChunkChars = 1500

	bulletsPerChunk    = 10
	maxParagraphChunks = 5
	minParagraphChars  = 100
	maxTriggerLength   = 80
)

// triggerKeywords start a captured section when they appear in a heading.
var triggerKeywords = []string{
	"requirement",
	"qualification",
	"responsibilit",
	"what you'll do",
	"what you will do",
	"what you’ll do",
	"what you'll need",
	"what you will need",
	"what you bring",
	"what we're looking for",
	"what we are looking for",
	"who you are",
	"about you",
	"skills",
	"experience",
	"nice to have",
	"preferred",
	"bonus points",
	"must have",
	"the role",
	"your impact",
	"duties",
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// ChunkJobDescription selects the sections of a description worth embedding.
// It captures text under requirement-like headings, falls back to groups of
// bullet lines, then to long paragraphs, and finally to the truncated text.
func ChunkJobDescription(text string) []types.JobChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if chunks := captureSections(text); len(chunks) > 0 {
		return chunks
	}
	if chunks := groupBullets(text); len(chunks) > 0 {
		return chunks
	}
	if chunks := longParagraphs(text); len(chunks) > 0 {
		return chunks
	}
	return []types.JobChunk{{Text: truncate(text, MaxJobChunkChars)}}
}

func captureSections(text string) []types.JobChunk {
	var chunks []types.JobChunk
	var current strings.Builder
	capturing := false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" && len(chunks) < MaxJobChunks {
			chunks = append(chunks, types.JobChunk{Text: truncate(s, MaxJobChunkChars)})
		}
		current.Reset()
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case isTriggerHeading(line):
			flush()
			if len(chunks) >= MaxJobChunks {
				return chunks
			}
			capturing = true
			current.WriteString(line)
		case isSectionBreak(line):
			flush()
			capturing = false
		case capturing:
			current.WriteByte('\n')
			current.WriteString(line)
			if utf8.RuneCountInString(current.String()) >= MaxJobChunkChars {
				flush()
				capturing = false
			}
		}
	}
	flush()
	return chunks
}

func isTriggerHeading(line string) bool {
	if bulletLine.MatchString(line) || utf8.RuneCountInString(line) > maxTriggerLength {
		return false
	}
	if !looksLikeHeading(line) {
		return false
	}
	lower := strings.ToLower(line)
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isSectionBreak reports explicit headings only; short plain lines inside a
// section are content.
func isSectionBreak(line string) bool {
	if bulletLine.MatchString(line) || utf8.RuneCountInString(line) > 60 {
		return false
	}
	return strings.HasPrefix(line, "#") || strings.HasSuffix(line, ":")
}

// looksLikeHeading accepts markdown headings, label lines ending in a colon
// and short lines without sentence punctuation.
func looksLikeHeading(line string) bool {
	if strings.HasPrefix(line, "#") || strings.HasSuffix(line, ":") {
		return true
	}
	if utf8.RuneCountInString(line) > 50 {
		return false
	}
	return !strings.ContainsAny(line[len(line)-1:], ".!?,;")
}

func groupBullets(text string) []types.JobChunk {
	var bullets []string
	for _, raw := range strings.Split(text, "\n") {
		if line := strings.TrimSpace(raw); bulletLine.MatchString(line) {
			bullets = append(bullets, line)
		}
	}

	var chunks []types.JobChunk
	for i := 0; i < len(bullets) && len(chunks) < MaxJobChunks; i += bulletsPerChunk {
		end := min(i+bulletsPerChunk, len(bullets))
		chunks = append(chunks, types.JobChunk{Text: truncate(strings.Join(bullets[i:end], "\n"), MaxJobChunkChars)})
	}
	return chunks
}

func longParagraphs(text string) []types.JobChunk {
	var chunks []types.JobChunk
	for _, p := range paragraphSplit.Split(text, -1) {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) <= minParagraphChars {
			continue
		}
		chunks = append(chunks, types.JobChunk{Text: truncate(p, MaxJobChunkChars)})
		if len(chunks) == maxParagraphChunks {
			break
		}
	}
	return chunks
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
