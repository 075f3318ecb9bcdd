// Package narrator turns a match score and its matched sections into a short
// explanation for the candidate.
package narrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/prompts"
	"github.com/jonathan/job-matcher/internal/types"
)

const maxSectionChars = 400

// Narrator explains match scores with one lite-tier completion.
type Narrator struct {
	client llm.Client
}

// New creates a Narrator.
func New(client llm.Client) *Narrator {
	return &Narrator{client: client}
}

// Explain returns two or three sentences about why the resume scored score.
func (n *Narrator) Explain(ctx context.Context, score float64, sections []types.MatchedSection) (string, error) {
	prompt, err := prompts.Render(prompts.NarratorFile, "explain-match", map[string]string{
		"Score":    strconv.FormatFloat(score, 'f', 0, 64),
		"Sections": formatSections(sections),
	})
	if err != nil {
		return "", err
	}

	text, err := n.client.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil {
		return "", fmt.Errorf("narration failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("narration failed: empty response")
	}
	return text, nil
}

// Annotate fills res.Reason when the strategy left it empty. Failures are
// returned and leave res unchanged.
func (n *Narrator) Annotate(ctx context.Context, res *types.MatchResult) error {
	if res == nil || res.Reason != "" || res.Error != "" || res.Message != "" {
		return nil
	}
	text, err := n.Explain(ctx, res.Score, res.MatchedSections)
	if err != nil {
		return err
	}
	res.Reason = text
	return nil
}

func formatSections(sections []types.MatchedSection) string {
	if len(sections) == 0 {
		return "(no sections matched)"
	}
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteByte('\n')
		}
		text := strings.Join(strings.Fields(s.Text), " ")
		if r := []rune(text); len(r) > maxSectionChars {
			text = string(r[:maxSectionChars]) + "..."
		}
		fmt.Fprintf(&b, "- [%s, %.0f%%] %s", s.Type, s.Relevance, text)
	}
	return b.String()
}
