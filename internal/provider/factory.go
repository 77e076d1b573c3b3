// Package provider contains the provider factory and registry for model
// backends.
//
// # Adding a New Provider
//
// Implement domain.Provider in a subpackage and expose an explicit
// registration function that calls registry.Register. Wire it from
// RegisterBuiltins so there are no init() side effects.
//
//	func RegisterProviderFactory() {
//	    registry.Register(registry.Factory{
//	        Type:     ProviderType,
//	        Create:   CreateFromConfig,
//	        Validate: ValidateConfig,
//	    })
//	}
package provider

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/provider/anthropic"
	"github.com/tjfontaine/persona-chat-gateway/internal/provider/openai"
	"github.com/tjfontaine/persona-chat-gateway/internal/provider/registry"
)

// ListProviderTypes returns the registered provider type names, sorted.
var ListProviderTypes = registry.Types

// RegisterBuiltins registers the openai, openai-compatible and anthropic
// factories. Safe to call more than once.
func RegisterBuiltins() {
	openai.RegisterProviderFactory()
	anthropic.RegisterProviderFactory()
}

// NewHTTPClient returns the client shared by all providers. Outbound calls are
// traced through otelhttp. Per-attempt deadlines come from the caller's
// context, so no client-wide timeout is set.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New creates one provider from configuration.
func New(cfg config.ProviderConfig, httpClient *http.Client) (domain.Provider, error) {
	p, err := registry.Create(cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", cfg.Name, err)
	}
	return p, nil
}
