package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job-agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, DefaultListingsURL, cfg.Listings.URL)
	assert.Equal(t, 40, cfg.Listings.DefaultLimit)
	assert.Equal(t, "carry-forward", cfg.Listings.SubListingPolicy)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "llm", cfg.Matching.Strategy)
	assert.Equal(t, 80.0, cfg.Orchestrator.ResearchThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Auth.KeyCacheTTL)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
listings:
  default_limit: 5
  sub_listing_policy: skip
matching:
  strategy: vector
cache:
  backend: sqlite
  sqlite_path: /tmp/cache.db
  ttl: 1h
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Listings.DefaultLimit)
	assert.Equal(t, "skip", cfg.Listings.SubListingPolicy)
	assert.Equal(t, "vector", cfg.Matching.Strategy)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JOB_AGENT_SERVER_PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/jobs", cfg.DatabaseURL)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(viper.New(), "/nonexistent/path/job-agent.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown strategy",
			content: "matching:\n  strategy: magic\n",
			wantErr: "Strategy",
		},
		{
			name:    "bad sub-listing policy",
			content: "listings:\n  sub_listing_policy: merge\n",
			wantErr: "SubListingPolicy",
		},
		{
			name:    "sqlite without path",
			content: "cache:\n  backend: sqlite\n",
			wantErr: "SQLitePath",
		},
		{
			name:    "port out of range",
			content: "server:\n  port: 70000\n",
			wantErr: "Port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(viper.New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	cfg.Queue.Backend = "rabbitmq"
	cfg.Queue.RabbitMQ.URL = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.rabbitmq.url")
}

func TestValidate_ClampsConcurrency(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	cfg.Orchestrator.ScanLimit = 2
	cfg.Orchestrator.Concurrency = 8
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Orchestrator.Concurrency)
}

func TestRequireDatabase(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireDatabase())

	cfg.DatabaseURL = "postgres://x"
	assert.NoError(t, cfg.RequireDatabase())
}

func TestAuthConfig_Normalize(t *testing.T) {
	c := AuthConfig{
		JWKSURL:        " https://example.clerk.accounts.dev/.well-known/jwks.json ",
		ProviderAPIURL: "https://api.clerk.com/v1/",
	}
	require.NoError(t, c.Normalize())
	assert.Equal(t, "https://example.clerk.accounts.dev/.well-known/jwks.json", c.JWKSURL)
	assert.Equal(t, "https://api.clerk.com/v1", c.ProviderAPIURL)
	assert.Equal(t, 10*time.Minute, c.KeyCacheTTL)
	assert.True(t, c.Enabled())

	bad := AuthConfig{JWKSURL: "ftp://keys"}
	assert.Error(t, bad.Normalize())

	assert.False(t, AuthConfig{}.Enabled())
}
