package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Client sends a prompt to a language model and returns its text response
type Client interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Provider() string
	Close() error
}

// Middleware wraps a Client with a cross-cutting concern
type Middleware func(Client) Client

// Chain applies middlewares so that the first one is the outermost
func Chain(c Client, mws ...Middleware) Client {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// Provider names
const (
	ProviderVertex = "vertex"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultGeminiModel is used when no model is configured for Google backends
const DefaultGeminiModel = "gemini-2.0-flash"

// Config selects and configures a backend and its middleware stack
type Config struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Project         string
	Location        string
	Temperature     float32
	MaxOutputTokens int32

	Retry             RetryPolicy
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// New creates a client for the configured provider wrapped with tracing,
// metrics, retry and rate limiting.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Client, error) {
	var (
		base Client
		err  error
	)

	switch strings.ToLower(cfg.Provider) {
	case ProviderVertex, "vertexai", "":
		base, err = NewVertexAIClient(ctx, cfg)
	case ProviderGemini, "google":
		base, err = NewGeminiClient(ctx, cfg)
	case ProviderOpenAI:
		base, err = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return Wrap(base, cfg, logger), nil
}

// Wrap applies the standard middleware stack to an existing client
func Wrap(base Client, cfg Config, logger *slog.Logger) Client {
	mws := []Middleware{TracingMiddleware(), MetricsMiddleware(), RetryMiddleware(cfg.Retry, logger)}
	if cfg.RequestsPerSecond > 0 {
		mws = append(mws, RateLimitMiddleware(cfg.RequestsPerSecond, cfg.Burst))
	}
	if cfg.Timeout > 0 {
		mws = append(mws, TimeoutMiddleware(cfg.Timeout))
	}
	return Chain(base, mws...)
}

// timeoutClient bounds each call with its own deadline
type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// TimeoutMiddleware bounds each attempt with a deadline
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Client) Client {
		return &timeoutClient{next: next, timeout: d}
	}
}

func (t *timeoutClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.GenerateContent(ctx, prompt)
}

func (t *timeoutClient) Provider() string { return t.next.Provider() }
func (t *timeoutClient) Close() error     { return t.next.Close() }
