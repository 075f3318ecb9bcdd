package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Score    float64  `json:"score"`
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence"`
	Note     string   `json:"note,omitempty"`
}

func TestFor_Decode(t *testing.T) {
	s, err := For("verdict", verdict{})
	require.NoError(t, err)
	assert.Contains(t, s.String(), `"score"`)

	var v verdict
	require.NoError(t, s.Decode([]byte(`{"score": 82, "reason": "ok", "evidence": ["Go -> Raft"]}`), &v))
	assert.Equal(t, 82.0, v.Score)
	assert.Equal(t, []string{"Go -> Raft"}, v.Evidence)
}

func TestFor_RejectsInvalidDocuments(t *testing.T) {
	s := MustFor("verdict", verdict{})

	tests := []struct {
		name string
		doc  string
	}{
		{"missing required field", `{"score": 82, "reason": "ok"}`},
		{"wrong type", `{"score": "high", "reason": "ok", "evidence": []}`},
		{"unknown property", `{"score": 1, "reason": "ok", "evidence": [], "extra": true}`},
		{"not json", `score: 82`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate([]byte(tt.doc))
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`

	assert.NoError(t, ValidateJSONString(schema, `{"name":"Acme"}`))

	err := ValidateJSONString(schema, `{}`)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "(root)", ve.Errors[0].Field)

	err = ValidateJSONString(`{"type": 12}`, `{}`)
	var le *SchemaLoadError
	assert.ErrorAs(t, err, &le)
}

func TestCached(t *testing.T) {
	a, err := Cached("verdict", verdict{})
	require.NoError(t, err)
	b, err := Cached("verdict", verdict{})
	require.NoError(t, err)
	assert.Same(t, a, b)
}
