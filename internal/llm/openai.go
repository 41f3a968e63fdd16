package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured for the openai provider
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIClient calls an OpenAI-compatible chat completion endpoint
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates an OpenAI client
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for the openai provider")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: temperatureOrDefault(cfg.Temperature),
		maxTokens:   int(maxTokensOrDefault(cfg.MaxOutputTokens)),
	}, nil
}

// GenerateContent sends a prompt as a single user message
func (o *OpenAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", newTransportError(ProviderOpenAI, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &TransportError{Provider: ProviderOpenAI, Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

// Provider returns the backend name
func (o *OpenAIClient) Provider() string { return ProviderOpenAI }

// Model returns the configured model name
func (o *OpenAIClient) Model() string { return o.model }

// Close is a no-op for the HTTP client
func (o *OpenAIClient) Close() error { return nil }
