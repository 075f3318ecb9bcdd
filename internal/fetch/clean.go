package fetch

import (
	"regexp"
	"strings"
)

// noisePatterns are deleted in order. Each removes the rest of its line.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Skip to main content[^\n]*`),
	regexp.MustCompile(`(?i)Sign In[^\n]*`),
	regexp.MustCompile(`(?i)© \d{4}.*`),
	regexp.MustCompile(`(?i)Apply\s*locations.*`),
	regexp.MustCompile(`(?i)Follow Us.*`),
}

// footerKeywords end the useful part of a posting.
var footerKeywords = []string{
	"equal opportunity employer",
	"equal employment opportunity",
	"privacy policy",
	"privacy notice",
	"all rights reserved",
	"terms of use",
	"terms of service",
	"cookie policy",
	"cookie settings",
	"e-verify",
	"pay transparency",
	"request an accommodation",
	"reasonable accommodation",
	"know your rights",
}

// sectionKeywords mark headings whose sections are kept.
var sectionKeywords = []string{
	"about the role",
	"about the job",
	"about this role",
	"about the position",
	"about the team",
	"about you",
	"job description",
	"overview",
	"the role",
	"responsibilities",
	"what you'll do",
	"what you will do",
	"what you’ll do",
	"your impact",
	"requirements",
	"qualifications",
	"what you'll need",
	"what you will need",
	"what we're looking for",
	"what we are looking for",
	"who you are",
	"skills",
	"experience",
	"nice to have",
	"preferred",
	"bonus",
	"compensation",
	"salary",
	"pay range",
	"benefits",
}

const maxHeadingLength = 60

// maxCleanPasses bounds the fixpoint loop in Clean.
const maxCleanPasses = 4

// Clean strips boilerplate from posting text. It deletes known noise
// patterns, truncates at the first footer or legal line, then keeps only
// the sections under recognised headings. Text without any recognised
// heading is returned after the first two steps. Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	out := cleanOnce(text)
	for range maxCleanPasses {
		next := cleanOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func cleanOnce(text string) string {
	text = RemoveNoise(text)
	text = truncateAtFooter(text)
	if kept, ok := keepSections(text); ok {
		return kept
	}
	return text
}

// RemoveNoise applies the ordered noise deletions and normalises whitespace.
func RemoveNoise(text string) string {
	for _, re := range noisePatterns {
		text = re.ReplaceAllString(text, "")
	}
	return normalizeWhitespace(text)
}

func truncateAtFooter(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range footerKeywords {
			if strings.Contains(lower, kw) {
				return normalizeWhitespace(strings.Join(lines[:i], "\n"))
			}
		}
	}
	return text
}

// keepSections returns only the lines that belong to allowlisted sections.
// ok is false when the text has no allowlisted heading.
func keepSections(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	var kept []string
	inSection := false
	found := false

	for _, line := range lines {
		if isHeading(line) {
			inSection = isAllowedHeading(line)
			if inSection {
				found = true
				if len(kept) > 0 {
					kept = append(kept, "")
				}
				kept = append(kept, line)
			}
			continue
		}
		if inSection {
			kept = append(kept, line)
		}
	}

	if !found {
		return "", false
	}
	return normalizeWhitespace(strings.Join(kept, "\n")), true
}

func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return true
	}
	return len(line) <= maxHeadingLength && strings.HasSuffix(line, ":") && !strings.HasPrefix(line, "-")
}

func isAllowedHeading(line string) bool {
	lower := strings.ToLower(strings.Trim(strings.TrimSpace(line), "#*: "))
	for _, kw := range sectionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
