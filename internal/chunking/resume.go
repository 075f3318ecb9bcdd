// Package chunking splits resumes and job descriptions into the sections
// that are embedded and compared.
package chunking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/job-matcher/internal/types"
)

// ChunkResume decomposes a resume into its full text, a skills chunk, and one
// chunk per experience and project entry. Every chunk carries the resume id
// and the candidate's preferences.
func ChunkResume(resumeID string, r types.Resume, prefs types.Preferences) []types.ResumeChunk {
	roles := strings.Join(prefs.Role, ",")
	base := func(id, text string, kind types.ChunkType, index *int) types.ResumeChunk {
		return types.ResumeChunk{
			ID:              id,
			Text:            text,
			Type:            kind,
			ResumeID:        resumeID,
			Index:           index,
			Roles:           roles,
			ExperienceLevel: prefs.ExperienceLevel,
		}
	}

	chunks := []types.ResumeChunk{
		base(resumeID+"_full", r.Text, types.ChunkFullText, nil),
	}

	if skills := nonEmpty(r.Skills); len(skills) > 0 {
		chunks = append(chunks, base(resumeID+"_skills", "Skills: "+strings.Join(skills, ", "), types.ChunkSkills, nil))
	}

	for i, exp := range nonEmpty(r.Experience) {
		idx := i
		chunks = append(chunks, base(fmt.Sprintf("%s_exp_%d", resumeID, i), "Experience: "+exp, types.ChunkExperience, &idx))
	}

	for i, proj := range nonEmpty(r.Projects) {
		idx := i
		chunks = append(chunks, base(fmt.Sprintf("%s_proj_%d", resumeID, i), "Project: "+proj, types.ChunkProject, &idx))
	}

	return chunks
}

type resumeSection int

const (
	sectionNone resumeSection = iota
	sectionSkills
	sectionExperience
	sectionProjects
	sectionOther
)

var sectionHeadings = map[string]resumeSection{
	"skills":                  sectionSkills,
	"technical skills":        sectionSkills,
	"skills & interests":      sectionSkills,
	"skills and interests":    sectionSkills,
	"technologies":            sectionSkills,
	"tech stack":              sectionSkills,
	"experience":              sectionExperience,
	"work experience":         sectionExperience,
	"professional experience": sectionExperience,
	"employment":              sectionExperience,
	"employment history":      sectionExperience,
	"projects":                sectionProjects,
	"personal projects":       sectionProjects,
	"technical projects":      sectionProjects,
	"selected projects":       sectionProjects,
	"education":               sectionOther,
	"certifications":          sectionOther,
	"awards":                  sectionOther,
	"leadership":              sectionOther,
	"activities":              sectionOther,
	"interests":               sectionOther,
	"summary":                 sectionOther,
	"objective":               sectionOther,
	"publications":            sectionOther,
	"coursework":              sectionOther,
	"relevant coursework":     sectionOther,
}

var (
	bulletLine = regexp.MustCompile(`^\s*([-*•·▪◦●]|\d+[.)])\s+`)
	skillSplit = regexp.MustCompile(`[,|;•·]`)
)

// ParseResumeText recovers a structured resume from extracted PDF text using
// its section headings. Entries are separated by blank lines, or start at a
// non-bullet line that follows a bullet.
func ParseResumeText(text string) types.Resume {
	r := types.Resume{Text: strings.TrimSpace(text)}

	section := sectionNone
	var entry []string
	flush := func() {
		if len(entry) == 0 {
			return
		}
		joined := strings.Join(entry, "\n")
		switch section {
		case sectionExperience:
			r.Experience = append(r.Experience, joined)
		case sectionProjects:
			r.Projects = append(r.Projects, joined)
		}
		entry = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		if s, ok := headingSection(line); ok {
			flush()
			section = s
			continue
		}

		switch section {
		case sectionSkills:
			r.Skills = append(r.Skills, splitSkills(line)...)
		case sectionExperience, sectionProjects:
			if line == "" {
				flush()
				continue
			}
			if !bulletLine.MatchString(line) && hasBullet(entry) {
				flush()
			}
			entry = append(entry, line)
		}
	}
	flush()

	r.Skills = dedupe(r.Skills)
	return r
}

func headingSection(line string) (resumeSection, bool) {
	if line == "" || len(line) > 40 {
		return sectionNone, false
	}
	key := strings.ToLower(strings.Trim(line, " :#*"))
	s, ok := sectionHeadings[key]
	return s, ok
}

func splitSkills(line string) []string {
	if line == "" {
		return nil
	}
	// "Languages: Go, Python" keeps only the list after the label.
	if i := strings.Index(line, ":"); i >= 0 && i < 30 {
		line = line[i+1:]
	}
	var out []string
	for _, part := range skillSplit.Split(line, -1) {
		part = strings.TrimSpace(bulletLine.ReplaceAllString(part, ""))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, s := range items {
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func hasBullet(lines []string) bool {
	for _, l := range lines {
		if bulletLine.MatchString(l) {
			return true
		}
	}
	return false
}
