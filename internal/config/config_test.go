package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/resume-screener/internal/llm"
)

func validConfig() *Config {
	c := DefaultConfig()
	c.GeminiAPIKey = "test-key"
	return c
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, llm.ProviderGemini, c.LLMProvider)
	assert.Equal(t, "gemini-2.0-flash", c.LLMModel)
	assert.Equal(t, int64(16<<20), c.MaxUploadBytes)
	assert.Equal(t, []string{"txt", "pdf", "docx", "doc"}, c.AllowedExtensions)
	assert.Equal(t, 8, c.MaxCriteria)
	assert.Equal(t, 15, c.MaxGeneratedCriteria)
	assert.Equal(t, SessionMemory, c.SessionBackend)
	assert.Equal(t, ":8080", c.Addr())
	assert.True(t, c.IsDev())
}

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoadFrom_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm_provider":"openai","openai_api_key":"sk","port":9090}`), 0600))

	c, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", c.LLMProvider)
	assert.Equal(t, "sk", c.OpenAIAPIKey)
	assert.Equal(t, 9090, c.Port)
	// unset fields keep their defaults
	assert.Equal(t, "uploads", c.UploadsDir)
}

func TestLoadFrom_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
llm_provider: vertex
google_cloud_project: my-project
retry_strategy: exponential
retry_delay: 2s
session_backend: redis
session_ttl: 90m
cors_origins:
  - https://screener.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0600))

	c, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "vertex", c.LLMProvider)
	assert.Equal(t, "my-project", c.GoogleCloudProject)
	assert.Equal(t, 2*time.Second, c.RetryDelay)
	assert.Equal(t, 90*time.Minute, c.SessionTTL)
	assert.Equal(t, []string{"https://screener.example.com"}, c.CORSOrigins)
	assert.NoError(t, c.Validate())
}

func TestLoadFrom_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestSaveTo_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			c := validConfig()
			c.SessionTTL = 3 * time.Hour
			c.CORSOrigins = []string{"http://localhost:3000"}

			require.NoError(t, c.SaveTo(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			got, err := LoadFrom(path)
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	// Given a file and environment variables that disagree
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":9090,"evaluation_workers":2}`), 0600))
	t.Setenv("PORT", "7070")
	t.Setenv("ALLOWED_EXTENSIONS", "pdf,docx")
	t.Setenv("RETRY_DELAY", "250ms")

	// When loaded
	c, err := Load(path)
	require.NoError(t, err)

	// Then environment wins and untouched file values survive
	assert.Equal(t, 7070, c.Port)
	assert.Equal(t, []string{"pdf", "docx"}, c.AllowedExtensions)
	assert.Equal(t, 250*time.Millisecond, c.RetryDelay)
	assert.Equal(t, 2, c.EvaluationWorkers)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAX_GENERATED_CRITERIA=12\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("MAX_GENERATED_CRITERIA") })

	c, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 12, c.MaxGeneratedCriteria)
}

func TestLoad_BadEnvironmentValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to parse environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid gemini", func(*Config) {}, ""},
		{"gemini needs key", func(c *Config) { c.GeminiAPIKey = "" }, "gemini_api_key"},
		{"openai needs key", func(c *Config) { c.LLMProvider = "openai" }, "openai_api_key"},
		{"vertex needs project", func(c *Config) { c.LLMProvider = "vertex" }, "google_cloud_project"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }, "LLMProvider"},
		{"workers", func(c *Config) { c.EvaluationWorkers = 0 }, "EvaluationWorkers"},
		{"port", func(c *Config) { c.Port = 70000 }, "Port"},
		{"extension", func(c *Config) { c.AllowedExtensions = []string{"exe"} }, "AllowedExtensions"},
		{"no extensions", func(c *Config) { c.AllowedExtensions = nil }, "AllowedExtensions"},
		{"max criteria", func(c *Config) { c.MaxCriteria = 20 }, "MaxCriteria"},
		{"retry strategy", func(c *Config) { c.RetryStrategy = "random" }, "RetryStrategy"},
		{"redis needs addr", func(c *Config) { c.SessionBackend = SessionRedis; c.RedisAddr = "" }, "redis_addr"},
		{"credentials file", func(c *Config) { c.GoogleCredentialsPath = "/does/not/exist.json" }, "google credentials file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLLMConfig(t *testing.T) {
	c := validConfig()
	c.RetryStrategy = "exponential"
	c.RetryMaxAttempts = 5
	c.LLMRequestsPerSec = 2

	got := c.LLM()

	assert.Equal(t, llm.ProviderGemini, got.Provider)
	assert.Equal(t, "test-key", got.APIKey)
	assert.Equal(t, 5, got.Retry.MaxAttempts)
	assert.True(t, got.Retry.Exponential)
	assert.Equal(t, 2.0, got.RequestsPerSecond)

	c.LLMProvider = llm.ProviderOpenAI
	c.OpenAIAPIKey = "sk"
	c.OpenAIBaseURL = "http://localhost:1234/v1"
	got = c.LLM()
	assert.Equal(t, "sk", got.APIKey)
	assert.Equal(t, "http://localhost:1234/v1", got.BaseURL)
}

func TestApplyToEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "")

	c := DefaultConfig()
	c.GoogleCloudProject = "proj"
	c.ApplyToEnv()

	assert.Equal(t, "proj", os.Getenv("GOOGLE_CLOUD_PROJECT"))
	assert.Equal(t, "us-central1", os.Getenv("GOOGLE_CLOUD_LOCATION"))
}

func TestLogging(t *testing.T) {
	c := DefaultConfig()
	c.LogLevel = "debug"

	opts := c.Logging()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, ServiceName, opts.Service)
	assert.Equal(t, "dev", opts.Env)
}
