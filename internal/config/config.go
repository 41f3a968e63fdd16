// Package config loads application settings from defaults, an optional
// JSON or YAML file, a .env file and the environment, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/logging"
)

// ServiceName identifies the process in logs and traces
const ServiceName = "resume-screener"

// Session backends
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	Env       string `json:"env" yaml:"env" env:"APP_ENV" validate:"oneof=dev test prod"`
	LogLevel  string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `json:"log_format" yaml:"log_format" env:"LOG_FORMAT" validate:"oneof=json text"`

	// Language model
	LLMProvider           string        `json:"llm_provider" yaml:"llm_provider" env:"LLM_PROVIDER" validate:"oneof=vertex gemini openai"`
	LLMModel              string        `json:"llm_model" yaml:"llm_model" env:"LLM_MODEL"`
	LLMTimeout            time.Duration `json:"llm_timeout" yaml:"llm_timeout" env:"LLM_TIMEOUT" validate:"min=0"`
	GeminiAPIKey          string        `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty" env:"GEMINI_API_KEY"`
	OpenAIAPIKey          string        `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty" env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `json:"openai_base_url,omitempty" yaml:"openai_base_url,omitempty" env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	GoogleCloudProject    string        `json:"google_cloud_project" yaml:"google_cloud_project" env:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudLocation   string        `json:"google_cloud_location" yaml:"google_cloud_location" env:"GOOGLE_CLOUD_LOCATION"`
	GoogleCredentialsPath string        `json:"google_credentials_path" yaml:"google_credentials_path" env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Retries, rate limiting and concurrency
	RetryMaxAttempts  int           `json:"retry_max_attempts" yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS" validate:"min=1,max=10"`
	RetryDelay        time.Duration `json:"retry_delay" yaml:"retry_delay" env:"RETRY_DELAY" validate:"min=0"`
	RetryMaxDelay     time.Duration `json:"retry_max_delay" yaml:"retry_max_delay" env:"RETRY_MAX_DELAY" validate:"min=0"`
	RetryStrategy     string        `json:"retry_strategy" yaml:"retry_strategy" env:"RETRY_STRATEGY" validate:"oneof=fixed exponential"`
	LLMRequestsPerSec float64       `json:"llm_requests_per_second" yaml:"llm_requests_per_second" env:"LLM_REQUESTS_PER_SECOND" validate:"min=0"`
	LLMBurst          int           `json:"llm_burst" yaml:"llm_burst" env:"LLM_BURST" validate:"min=0"`
	EvaluationWorkers int           `json:"evaluation_workers" yaml:"evaluation_workers" env:"EVALUATION_WORKERS" validate:"min=1,max=64"`

	// Uploads and criteria
	UploadsDir           string   `json:"uploads_dir" yaml:"uploads_dir" env:"UPLOADS_DIR" validate:"required"`
	MaxUploadBytes       int64    `json:"max_upload_bytes" yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" validate:"min=1"`
	AllowedExtensions    []string `json:"allowed_extensions" yaml:"allowed_extensions" env:"ALLOWED_EXTENSIONS" envSeparator:"," validate:"min=1,dive,oneof=txt pdf docx doc"`
	MaxCriteria          int      `json:"max_criteria" yaml:"max_criteria" env:"MAX_CRITERIA" validate:"min=1,max=15"`
	MaxGeneratedCriteria int      `json:"max_generated_criteria" yaml:"max_generated_criteria" env:"MAX_GENERATED_CRITERIA" validate:"min=1,max=30"`

	// Sessions
	SessionBackend string        `json:"session_backend" yaml:"session_backend" env:"SESSION_BACKEND" validate:"oneof=memory redis"`
	RedisAddr      string        `json:"redis_addr" yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword  string        `json:"redis_password,omitempty" yaml:"redis_password,omitempty" env:"REDIS_PASSWORD"`
	RedisDB        int           `json:"redis_db" yaml:"redis_db" env:"REDIS_DB" validate:"min=0"`
	SessionTTL     time.Duration `json:"session_ttl" yaml:"session_ttl" env:"SESSION_TTL" validate:"min=0"`

	// HTTP
	Port              int           `json:"port" yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	CORSOrigins       []string      `json:"cors_origins" yaml:"cors_origins" env:"CORS_ALLOW_ORIGINS" envSeparator:","`
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" env:"RATE_LIMIT_PER_MIN" validate:"min=0"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" validate:"min=0"`

	// Gmail
	GmailCredentialsPath string `json:"gmail_credentials_path" yaml:"gmail_credentials_path" env:"GMAIL_CREDENTIALS"`
	GmailTokenPath       string `json:"gmail_token_path" yaml:"gmail_token_path" env:"GMAIL_TOKEN"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Env:       "dev",
		LogLevel:  "info",
		LogFormat: "json",

		LLMProvider:         llm.ProviderGemini,
		LLMModel:            llm.DefaultGeminiModel,
		LLMTimeout:          2 * time.Minute,
		GoogleCloudLocation: "us-central1",

		RetryMaxAttempts:  llm.DefaultMaxAttempts,
		RetryDelay:        llm.DefaultRetryDelay,
		RetryMaxDelay:     time.Minute,
		RetryStrategy:     "fixed",
		EvaluationWorkers: 4,

		UploadsDir:           "uploads",
		MaxUploadBytes:       16 << 20,
		AllowedExtensions:    []string{"txt", "pdf", "docx", "doc"},
		MaxCriteria:          8,
		MaxGeneratedCriteria: 15,

		SessionBackend: SessionMemory,
		RedisAddr:      "localhost:6379",
		SessionTTL:     24 * time.Hour,

		Port:              8080,
		CORSOrigins:       []string{"*"},
		RequestsPerMinute: 120,
		ShutdownTimeout:   30 * time.Second,

		GmailCredentialsPath: "credentials.json",
		GmailTokenPath:       "token.json",
	}
}

// GetConfigPath returns the path to the configuration file
// On Windows: %APPDATA%/ResumeScreener/config.json
// On Unix: ~/.config/ResumeScreener/config.json
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		// Windows
		configDir = filepath.Join(os.Getenv("APPDATA"), "ResumeScreener")
	} else {
		// Unix-like systems
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "ResumeScreener")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load builds the configuration from all layers. An empty path uses
// GetConfigPath. A missing file or .env is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}

	// .env never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// LoadFrom loads configuration from a specific path. Files ending in .yaml
// or .yml are read as YAML, anything else as JSON.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Save saves the configuration to the default config path
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to a specific path in the format its
// extension implies
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field ranges and the settings each provider and session
// backend needs
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.LLMProvider {
	case llm.ProviderVertex:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("google_cloud_project is required for the vertex provider")
		}
		if c.GoogleCloudLocation == "" {
			return fmt.Errorf("google_cloud_location is required for the vertex provider")
		}
	case llm.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("gemini_api_key is required for the gemini provider")
		}
	case llm.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required for the openai provider")
		}
	}

	if c.SessionBackend == SessionRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required for the redis session backend")
	}

	if c.GoogleCredentialsPath != "" {
		if _, err := os.Stat(c.GoogleCredentialsPath); err != nil {
			return fmt.Errorf("google credentials file not found: %w", err)
		}
	}

	return nil
}

// ApplyToEnv applies configuration values to environment variables read by
// the Google client libraries
func (c *Config) ApplyToEnv() {
	if c.GoogleCloudProject != "" {
		os.Setenv("GOOGLE_CLOUD_PROJECT", c.GoogleCloudProject)
	}
	if c.GoogleCloudLocation != "" {
		os.Setenv("GOOGLE_CLOUD_LOCATION", c.GoogleCloudLocation)
	}
	if c.GoogleCredentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleCredentialsPath)
	}
}

// RetryPolicy returns the language model retry policy
func (c *Config) RetryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxAttempts: c.RetryMaxAttempts,
		Delay:       c.RetryDelay,
		MaxDelay:    c.RetryMaxDelay,
		Exponential: llm.ParseStrategy(c.RetryStrategy),
	}
}

// LLM returns the client configuration for the selected provider
func (c *Config) LLM() llm.Config {
	cfg := llm.Config{
		Provider:          c.LLMProvider,
		Model:             c.LLMModel,
		Project:           c.GoogleCloudProject,
		Location:          c.GoogleCloudLocation,
		Retry:             c.RetryPolicy(),
		RequestsPerSecond: c.LLMRequestsPerSec,
		Burst:             c.LLMBurst,
		Timeout:           c.LLMTimeout,
	}
	switch c.LLMProvider {
	case llm.ProviderGemini:
		cfg.APIKey = c.GeminiAPIKey
	case llm.ProviderOpenAI:
		cfg.APIKey = c.OpenAIAPIKey
		cfg.BaseURL = c.OpenAIBaseURL
	}
	return cfg
}

// Logging returns the logger options
func (c *Config) Logging() logging.Options {
	return logging.Options{
		Level:   c.LogLevel,
		Format:  c.LogFormat,
		Service: ServiceName,
		Env:     c.Env,
	}
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsDev reports whether the app is running in development mode.
func (c *Config) IsDev() bool { return strings.EqualFold(c.Env, "dev") }

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
