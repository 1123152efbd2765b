package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func isolate(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	t.Setenv("HOME", t.TempDir())
	for _, v := range []string{
		"NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD", "NEO4J_DATABASE",
		"GITHUB_TOKEN", "SLACK_TOKEN", "OPENAI_API_KEY", "GEMINI_API_KEY", "REDIS_URL",
		"LLM_PROVIDER", "EMBEDDING_PROVIDER",
	} {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.Database)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.LLM.TopK)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
neo4j:
  uri: bolt://graph:7687
  user: reader
  query_timeout: 10s
slack:
  channels: [C1, C2]
embedding:
  provider: openai
  dimensions: 256
`), 0o644))

	t.Setenv("NEO4J_PASSWORD", "s3cret")
	t.Setenv("NEO4J_DATABASE", "team")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "reader", cfg.Neo4j.User)
	assert.Equal(t, "s3cret", cfg.Neo4j.Password)
	assert.Equal(t, "team", cfg.Neo4j.Database)
	assert.Equal(t, 10*time.Second, cfg.Neo4j.QueryTimeout)
	assert.Equal(t, []string{"C1", "C2"}, cfg.Slack.Channels)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
	assert.Equal(t, "sk-env", cfg.LLM.OpenAIKey)
}

func TestSave_OmitsSecrets(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Neo4j.Password = "s3cret"
	cfg.LLM.OpenAIKey = "sk-secret"
	cfg.GitHub.Token = "ghp_secret"

	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.NotContains(t, string(data), "sk-secret")
	assert.NotContains(t, string(data), "ghp_secret")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Neo4j.Password = "correct-horse"
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		ctx      ValidationContext
		wantErr  bool
		wantWarn bool
	}{
		{"ingest ok", func(*Config) {}, ValidationContextIngest, false, false},
		{"missing password", func(c *Config) { c.Neo4j.Password = "" }, ValidationContextIngest, true, false},
		{"bad scheme", func(c *Config) { c.Neo4j.URI = "http://graph:7474" }, ValidationContextIngest, true, false},
		{"common password warns", func(c *Config) { c.Neo4j.Password = "neo4j" }, ValidationContextIngest, false, true},
		{"openai embeddings need a key", func(c *Config) { c.Embedding.Provider = "openai" }, ValidationContextIngest, true, false},
		{"unknown staging driver", func(c *Config) { c.Staging.Driver = "mysql" }, ValidationContextIngest, true, false},
		{"query needs a generation key", func(*Config) {}, ValidationContextQuery, true, false},
		{"query with gemini key", func(c *Config) { c.LLM.GeminiKey = "g" }, ValidationContextQuery, false, false},
		{"slack token required", func(*Config) {}, ValidationContextFetchSlack, true, false},
		{"github token optional", func(*Config) {}, ValidationContextFetchGitHub, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			result := cfg.Validate(tt.ctx)
			assert.Equal(t, tt.wantErr, result.HasErrors(), result.Errors)
			assert.Equal(t, tt.wantWarn, len(result.Warnings) > 0, result.Warnings)
			if tt.wantErr {
				assert.Error(t, result.Err())
			} else {
				assert.NoError(t, result.Err())
			}
		})
	}
}
