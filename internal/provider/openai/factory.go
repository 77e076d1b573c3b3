package openai

import (
	"net/http"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "openai"

// ProviderTypeCompatible is the provider type for OpenAI-compatible APIs.
const ProviderTypeCompatible = "openai-compatible"

// RegisterProviderFactory registers both openai type names.
func RegisterProviderFactory() {
	for _, t := range []string{ProviderType, ProviderTypeCompatible} {
		registry.Register(registry.Factory{
			Type:     t,
			Create:   CreateFromConfig,
			Validate: ValidateConfig,
		})
	}
}

// CreateFromConfig creates a new OpenAI provider from configuration.
func CreateFromConfig(cfg config.ProviderConfig, httpClient *http.Client) (domain.Provider, error) {
	return New(cfg.APIKey,
		WithName(cfg.Name),
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(httpClient),
	), nil
}

// ValidateConfig validates the provider configuration.
func ValidateConfig(cfg config.ProviderConfig) error {
	// API key is optional for OpenAI-compatible providers (some local models don't need it)
	return nil
}
