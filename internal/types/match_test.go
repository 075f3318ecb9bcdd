package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchResult_Details(t *testing.T) {
	tests := []struct {
		name       string
		result     *MatchResult
		wantReason string
	}{
		{
			name:       "reason wins",
			result:     &MatchResult{Score: 82, Reason: "Strong Go background", Message: "ignored"},
			wantReason: "Strong Go background",
		},
		{
			name:       "message fallback",
			result:     &MatchResult{Message: "No resume found for this ID. Please upload a resume first."},
			wantReason: "No resume found for this ID. Please upload a resume first.",
		},
		{
			name:       "error fallback",
			result:     &MatchResult{Error: "embedding failed"},
			wantReason: "Error: embedding failed",
		},
		{
			name:       "nil result",
			result:     nil,
			wantReason: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.result.Details()
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.NotNil(t, d.Evidence)
			assert.NotNil(t, d.MissingSkills)
		})
	}
}

func TestJobMatch_JSONShape(t *testing.T) {
	m := JobMatch{
		Company:  "Acme",
		Role:     "SWE Intern",
		Location: "Remote",
		Link:     "https://acme.example/jobs/1",
		MatchDetails: (&MatchResult{
			Score:         91,
			Reason:        "Matches backend requirements",
			Evidence:      []string{"Go -> built a gRPC service"},
			MissingSkills: nil,
		}).Details(),
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	details := decoded["match_details"].(map[string]any)
	assert.Equal(t, 91.0, details["score"])
	assert.Equal(t, []any{}, details["missing_skills"])
	assert.NotContains(t, decoded, "error")
}

func TestIngestRequest_Validate(t *testing.T) {
	valid := IngestRequest{
		Resume:      Resume{Text: "Jane Doe, Go developer"},
		Preferences: Preferences{Role: []string{"backend"}, ExperienceLevel: "intern"},
	}
	assert.NoError(t, valid.Validate())

	missingRole := valid
	missingRole.Preferences.Role = nil
	assert.Error(t, missingRole.Validate())

	missingText := valid
	missingText.Resume.Text = ""
	assert.Error(t, missingText.Validate())
}

func TestJobListing_HasLink(t *testing.T) {
	assert.True(t, JobListing{Link: "https://x.example"}.HasLink())
	assert.False(t, JobListing{Link: NoLink}.HasLink())
	assert.False(t, JobListing{}.HasLink())
}
