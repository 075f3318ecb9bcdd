package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-matcher/internal/types"
)

const listingsReadme = `<table>
<tbody>
<tr><td>Acme</td><td>Software Engineering Intern</td><td>Remote</td><td><a href="https://acme.example/1">Apply</a></td></tr>
<tr><td>↳</td><td>Data Intern</td><td>NYC</td><td><a href="https://acme.example/2">Apply</a></td></tr>
<tr><td>Globex</td><td>Backend Intern</td><td>Austin, TX</td><td><a href="https://globex.example/1">Apply</a></td></tr>
</tbody>
</table>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command in-process and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		cfgFile, logLevel = "", ""
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListingsCommand_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingsReadme))
	}))
	defer srv.Close()

	config := writeFile(t, "job-agent.yaml", fmt.Sprintf("listings:\n  url: %s\nlog:\n  level: error\n", srv.URL))
	t.Cleanup(func() { listingsLimit, listingsJSON = 0, false })

	out, err := execute(t, "--config", config, "listings", "--json", "-n", "2")
	require.NoError(t, err)

	var jobs []types.JobListing
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, "Acme", jobs[1].Company, "sub-listings inherit the company above")
	assert.Equal(t, "Data Intern", jobs[1].Role)
}

func TestListingsCommand_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	config := writeFile(t, "job-agent.yaml", fmt.Sprintf("listings:\n  url: %s\nlog:\n  level: error\n", srv.URL))
	_, err := execute(t, "--config", config, "listings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch jobs")
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	config := writeFile(t, "job-agent.yaml", "matching:\n  strategy: magic\n")
	_, err := execute(t, "--config", config, "listings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestLoadIngestRequest(t *testing.T) {
	valid := writeFile(t, "resume.json", `{
		"resume": {"text": "Go developer", "skills": ["Go", "SQL"]},
		"preferences": {"role": ["backend"], "experience_level": "intern"}
	}`)
	req, err := loadIngestRequest(valid)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "SQL"}, req.Resume.Skills)

	missingPrefs := writeFile(t, "resume.json", `{"resume": {"text": "Go developer"}}`)
	_, err = loadIngestRequest(missingPrefs)
	assert.Error(t, err)

	broken := writeFile(t, "resume.json", `{`)
	_, err = loadIngestRequest(broken)
	assert.Error(t, err)

	_, err = loadIngestRequest(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReadResume_PlainText(t *testing.T) {
	path := writeFile(t, "resume.txt", "Ada Lovelace\nSKILLS\nGo, SQL\n")
	text, err := readResume(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Go, SQL")
}

func TestValidateMatchFlags(t *testing.T) {
	t.Cleanup(func() { matchJobFile, matchURL, matchResumeFile, matchResumeID = "", "", "", "" })

	tests := []struct {
		name     string
		job      string
		url      string
		resume   string
		id       string
		strategy string
		wantErr  string
	}{
		{name: "no job", resume: "r.pdf", strategy: types.StrategyLLM, wantErr: "--job or --url"},
		{name: "llm without resume", job: "job.txt", strategy: types.StrategyLLM, wantErr: "--resume is required"},
		{name: "vector without id", url: "https://jobs.example/1", strategy: types.StrategyVector, wantErr: "--resume-id"},
		{name: "unknown strategy", job: "job.txt", strategy: "magic", wantErr: "unknown match strategy"},
		{name: "llm ok", job: "job.txt", resume: "r.pdf", strategy: types.StrategyLLM},
		{name: "vector ok", url: "https://jobs.example/1", id: "resume-1", strategy: types.StrategyVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matchJobFile, matchURL, matchResumeFile, matchResumeID = tt.job, tt.url, tt.resume, tt.id
			err := validateMatchFlags(tt.strategy)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
