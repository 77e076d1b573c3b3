// Package anthropic adapts the Anthropic Messages API to the domain.Provider
// capability.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	anthropicapi "github.com/tjfontaine/persona-chat-gateway/internal/api/anthropic"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

const (
	// defaultMaxTokens is sent when no budget is given; the API requires one
	defaultMaxTokens = 1024
	maxTemperature   = 1.0
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

// Provider implements domain.Provider on top of the messages client.
type Provider struct {
	client     *anthropicapi.Client
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Anthropic provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{name: ProviderType}

	for _, opt := range opts {
		opt(p)
	}

	p.client = anthropicapi.NewClient(apiKey,
		anthropicapi.WithBaseURL(p.baseURL),
		anthropicapi.WithHTTPClient(p.httpClient),
	)
	return p
}

func (p *Provider) Name() string {
	return p.name
}

// Call sends one messages request and returns the concatenated text blocks.
func (p *Provider) Call(ctx context.Context, system string, messages []domain.Message, params domain.GenerationParams) (string, error) {
	resp, err := p.client.CreateMessage(ctx, toAPIRequest(system, messages, params))
	if err != nil {
		var apiErr *anthropicapi.APIError
		if errors.As(err, &apiErr) {
			return "", &domain.StatusError{Provider: p.name, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	return resp.Text(), nil
}

// toAPIRequest builds the request. The Messages API wants the conversation to
// open with a user turn and roles to alternate, so leading assistant turns are
// dropped and consecutive same-role turns are merged.
func toAPIRequest(system string, messages []domain.Message, params domain.GenerationParams) *anthropicapi.MessagesRequest {
	req := &anthropicapi.MessagesRequest{
		Model:     params.Model,
		MaxTokens: params.MaxTokens,
		System:    system,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	t := min(max(params.Temperature, 0), maxTemperature)
	req.Temperature = &t

	for _, m := range messages {
		if len(req.Messages) == 0 && m.Role != domain.RoleUser {
			continue
		}
		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == string(m.Role) {
			req.Messages[n-1].Content += "\n\n" + m.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicapi.Message{Role: string(m.Role), Content: m.Content})
	}
	return req
}
