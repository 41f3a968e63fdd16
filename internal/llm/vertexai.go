package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// VertexAIClient wraps the Vertex AI Gemini API
type VertexAIClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	projectID string
	location  string
}

// NewVertexAIClient creates a new Vertex AI client
func NewVertexAIClient(ctx context.Context, cfg Config) (*VertexAIClient, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("google cloud project is required for the vertex provider")
	}

	location := cfg.Location
	if location == "" {
		location = "us-central1"
	}

	var opts []option.ClientOption
	if looksLikeFilePath(cfg.APIKey) {
		opts = append(opts, option.WithCredentialsFile(cfg.APIKey))
	}

	client, err := genai.NewClient(ctx, cfg.Project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperatureOrDefault(cfg.Temperature))
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(maxTokensOrDefault(cfg.MaxOutputTokens))

	return &VertexAIClient{
		client:    client,
		model:     model,
		modelName: modelName,
		projectID: cfg.Project,
		location:  location,
	}, nil
}

// GenerateContent sends a prompt to the model and returns the response
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", &TransportError{Provider: ProviderVertex, Err: fmt.Errorf("response blocked: %w", err)}
		}
		return "", newTransportError(ProviderVertex, fmt.Errorf("failed to generate content: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &TransportError{Provider: ProviderVertex, Err: ErrEmptyResponse}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", &TransportError{Provider: ProviderVertex, Err: ErrEmptyResponse}
	}
	return sb.String(), nil
}

// Provider returns the backend name
func (v *VertexAIClient) Provider() string { return ProviderVertex }

// Model returns the configured model name
func (v *VertexAIClient) Model() string { return v.modelName }

// Close closes the Vertex AI client
func (v *VertexAIClient) Close() error {
	return v.client.Close()
}

func temperatureOrDefault(t float32) float32 {
	if t <= 0 {
		return 0.2
	}
	return t
}

func maxTokensOrDefault(n int32) int32 {
	if n <= 0 {
		return 4096
	}
	return n
}

// looksLikeFilePath distinguishes a service account file from an API key
func looksLikeFilePath(s string) bool {
	return strings.HasSuffix(strings.ToLower(s), ".json") || strings.ContainsAny(s, `/\`)
}
