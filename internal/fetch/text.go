package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const baseNoiseSelector = "nav, footer, header, script, style, noscript, svg, iframe, button, .sidebar, .popup, [role='navigation'], [aria-hidden='true']"

const blockSelector = "p, div, section, article, br, tr, ul, ol, table, dl, dt, dd, blockquote, pre"

// HTMLToText renders HTML to line-oriented plain text. Headings become
// "## " lines and list items "- " lines so later passes can see structure.
func HTMLToText(html string, platform Platform) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(baseNoiseSelector).Remove()
	doc.Find(strings.Join(platform.NoiseSelectors(), ", ")).Remove()

	var root *goquery.Selection
	for _, selector := range platform.ContentSelectors() {
		if sel := doc.Find(selector); sel.Length() > 0 && strings.TrimSpace(sel.First().Text()) != "" {
			root = sel.First()
			break
		}
	}
	if root == nil {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	root.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n## ")
		s.AppendHtml("\n")
	})
	root.Find("strong, b").Each(func(_ int, s *goquery.Selection) {
		if s.Parent().Is("p") && strings.TrimSpace(s.Parent().Text()) == strings.TrimSpace(s.Text()) {
			s.PrependHtml("\n## ")
		}
	})
	root.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n- ")
		s.AppendHtml("\n")
	})
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return normalizeWhitespace(root.Text()), nil
}

// normalizeWhitespace collapses runs of spaces, trims lines and drops
// duplicate blank lines.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || line == "##" || line == "-" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
