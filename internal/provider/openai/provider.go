// Package openai adapts OpenAI-compatible chat completion endpoints to the
// domain.Provider capability.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openaiapi "github.com/tjfontaine/persona-chat-gateway/internal/api/openai"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithName overrides the name reported in logs and errors.
func WithName(name string) ProviderOption {
	return func(p *Provider) {
		if name != "" {
			p.name = name
		}
	}
}

// Provider implements domain.Provider on top of the chat completions client.
type Provider struct {
	client     *openaiapi.Client
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{name: ProviderType}

	for _, opt := range opts {
		opt(p)
	}

	p.client = openaiapi.NewClient(apiKey,
		openaiapi.WithBaseURL(p.baseURL),
		openaiapi.WithHTTPClient(p.httpClient),
	)
	return p
}

func (p *Provider) Name() string {
	return p.name
}

// Call sends one chat completion and returns the first choice's content.
// An empty choice list yields "" so the caller can judge the output.
func (p *Provider) Call(ctx context.Context, system string, messages []domain.Message, params domain.GenerationParams) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, toAPIRequest(system, messages, params))
	if err != nil {
		var apiErr *openaiapi.APIError
		if errors.As(err, &apiErr) {
			return "", &domain.StatusError{Provider: p.name, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("%s: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func toAPIRequest(system string, messages []domain.Message, params domain.GenerationParams) *openaiapi.ChatCompletionRequest {
	req := &openaiapi.ChatCompletionRequest{
		Model:     params.Model,
		MaxTokens: params.MaxTokens,
		Messages:  make([]openaiapi.ChatCompletionMessage, 0, len(messages)+1),
	}
	t := params.Temperature
	req.Temperature = &t
	if params.JSONMode {
		req.ResponseFormat = &openaiapi.ResponseFormat{Type: "json_object"}
	}

	if system != "" {
		req.Messages = append(req.Messages, openaiapi.ChatCompletionMessage{Role: string(domain.RoleSystem), Content: system})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openaiapi.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return req
}
