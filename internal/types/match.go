package types

// Strategy names.
const (
	StrategyVector = "vector"
	StrategyLLM    = "llm"
)

// MatchedSection is a resume section that matched part of a job description.
type MatchedSection struct {
	Text      string    `json:"text"`
	Type      ChunkType `json:"type"`
	Relevance float64   `json:"relevance"`
}

// MatchResult is the outcome of scoring one resume against one job.
// Score is always within [0,100]. Results are never cached.
type MatchResult struct {
	Strategy        string           `json:"strategy"`
	Score           float64          `json:"match_score"`
	MatchedSections []MatchedSection `json:"matched_sections"`
	Message         string           `json:"message,omitempty"`
	Error           string           `json:"error,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Evidence        []string         `json:"evidence"`
	MissingSkills   []string         `json:"missing_skills"`
}

// MatchDetails is the score block rendered by the UI.
type MatchDetails struct {
	Score         float64  `json:"score"`
	Reason        string   `json:"reason"`
	Evidence      []string `json:"evidence"`
	MissingSkills []string `json:"missing_skills"`
}

// Details converts a result into the UI shape. The reason falls back to the
// message, then the error.
func (m *MatchResult) Details() MatchDetails {
	if m == nil {
		return MatchDetails{Evidence: []string{}, MissingSkills: []string{}}
	}
	reason := m.Reason
	if reason == "" {
		reason = m.Message
	}
	if reason == "" && m.Error != "" {
		reason = "Error: " + m.Error
	}
	return MatchDetails{
		Score:         m.Score,
		Reason:        reason,
		Evidence:      nonNil(m.Evidence),
		MissingSkills: nonNil(m.MissingSkills),
	}
}

// JobMatch is one slot of a scan: a listing with its score or its error.
type JobMatch struct {
	Company      string       `json:"company"`
	Role         string       `json:"role"`
	Location     string       `json:"location"`
	Link         string       `json:"link"`
	MatchDetails MatchDetails `json:"match_details"`
	Error        string       `json:"error,omitempty"`
}

// ScanReport is the final output of the orchestrator.
type ScanReport struct {
	Matches  []JobMatch        `json:"matches"`
	Research map[string]string `json:"research"`
	Error    string            `json:"error,omitempty"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
