// Package registry maps configured provider types to constructors.
//
// Backends register through an explicit call (see provider.RegisterBuiltins)
// so importing a backend package has no side effects.
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// Factory builds providers of one configured type.
type Factory struct {
	// Type is matched against config.ProviderConfig.Type.
	Type string

	// Create builds the provider. httpClient is shared by every provider and
	// may be nil.
	Create func(cfg config.ProviderConfig, httpClient *http.Client) (domain.Provider, error)

	// Validate rejects an entry before Create runs. Optional.
	Validate func(cfg config.ProviderConfig) error
}

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds f unless its type is already known and reports whether it was
// added. A factory without a type or constructor is a programming error.
func Register(f Factory) bool {
	if f.Type == "" {
		panic("registry: factory type is empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("registry: factory %q has no Create", f.Type))
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[f.Type]; ok {
		return false
	}
	factories[f.Type] = f
	return true
}

// Types lists the registered type names in sorted order.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create validates cfg with its type's factory and builds the provider.
func Create(cfg config.ProviderConfig, httpClient *http.Client) (domain.Provider, error) {
	mu.RLock()
	f, ok := factories[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q (registered: %v)", cfg.Type, Types())
	}

	if f.Validate != nil {
		if err := f.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid %s provider config: %w", cfg.Type, err)
		}
	}
	return f.Create(cfg, httpClient)
}
