package anthropic

import (
	"errors"
	"net/http"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "anthropic"

// RegisterProviderFactory registers the anthropic provider type.
func RegisterProviderFactory() {
	registry.Register(registry.Factory{
		Type:     ProviderType,
		Create:   CreateFromConfig,
		Validate: ValidateConfig,
	})
}

// CreateFromConfig creates a new Anthropic provider from configuration.
func CreateFromConfig(cfg config.ProviderConfig, httpClient *http.Client) (domain.Provider, error) {
	return New(cfg.APIKey,
		WithName(cfg.Name),
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(httpClient),
	), nil
}

// ValidateConfig validates the provider configuration.
func ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return errors.New("api_key is required")
	}
	return nil
}
