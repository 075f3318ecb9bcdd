package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(MatchingFile, "judge-match")
	require.NoError(t, err)
	assert.Contains(t, prompt, "strict technical recruiter")
	assert.Contains(t, prompt, "{{.JobDescription}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(MatchingFile, "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestAllPromptFilesLoad(t *testing.T) {
	ClearCache()

	for file, key := range map[string]string{
		MatchingFile: "judge-match",
		NarratorFile: "explain-match",
		ResearchFile: "summarize-company",
	} {
		assert.NotPanics(t, func() {
			assert.NotEmpty(t, MustGet(file, key))
		}, file)
	}
}

func TestFormat(t *testing.T) {
	template := "Hello {{.Name}}, welcome to {{.Company}}!"
	data := map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	}

	assert.Equal(t, "Hello Alice, welcome to Acme Corp!", Format(template, data))
}

func TestFormat_ValueContainsPlaceholder(t *testing.T) {
	out := Format("{{.A}} and {{.B}}", map[string]string{"A": "{{.B}}", "B": "b"})
	assert.Equal(t, "{{.B}} and b", out)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	assert.Equal(t, template, Format(template, map[string]string{}))
}

func TestRender(t *testing.T) {
	ClearCache()

	out, err := Render(NarratorFile, "explain-match", map[string]string{"Score": "82", "Sections": "- skills (90%)"})
	require.NoError(t, err)
	assert.Contains(t, out, "82/100")
	assert.NotContains(t, out, "{{.")

	_, err = Render(NarratorFile, "explain-match", map[string]string{"Score": "82"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sections")
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List(ResearchFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"summarize-company"}, keys)
}

func TestCaching(t *testing.T) {
	ClearCache()

	prompt1, err := Get(MatchingFile, "judge-match")
	require.NoError(t, err)
	prompt2, err := Get(MatchingFile, "judge-match")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
