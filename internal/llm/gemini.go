package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API with an API key
type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiClient creates a Gemini API client
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for the gemini provider")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiClient{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(temperatureOrDefault(cfg.Temperature)),
			TopP:            genai.Ptr[float32](0.95),
			MaxOutputTokens: maxTokensOrDefault(cfg.MaxOutputTokens),
		},
	}, nil
}

// GenerateContent sends a prompt to the model and returns the response
func (g *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return "", newTransportError(ProviderGemini, err)
	}

	text := resp.Text()
	if text == "" {
		return "", &TransportError{Provider: ProviderGemini, Err: ErrEmptyResponse}
	}
	return text, nil
}

// Provider returns the backend name
func (g *GeminiClient) Provider() string { return ProviderGemini }

// Model returns the configured model name
func (g *GeminiClient) Model() string { return g.model }

// Close is a no-op; the genai client holds no resources
func (g *GeminiClient) Close() error { return nil }
