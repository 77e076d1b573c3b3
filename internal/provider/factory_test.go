package provider

import (
	"net/http"
	"testing"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
)

func TestNew(t *testing.T) {
	RegisterBuiltins()
	RegisterBuiltins()

	tests := []struct {
		name    string
		cfg     config.ProviderConfig
		wantErr bool
	}{
		{"openai", config.ProviderConfig{Name: "primary", Type: "openai", APIKey: "k"}, false},
		{"openai-compatible without key", config.ProviderConfig{Name: "local", Type: "openai-compatible", BaseURL: "http://localhost:11434/v1"}, false},
		{"anthropic", config.ProviderConfig{Name: "claude", Type: "anthropic", APIKey: "k"}, false},
		{"anthropic without key", config.ProviderConfig{Name: "claude", Type: "anthropic"}, true},
		{"unknown", config.ProviderConfig{Name: "x", Type: "gemini"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, NewHTTPClient())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Name() != tt.cfg.Name {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.cfg.Name)
			}
		})
	}
}

func TestListProviderTypes(t *testing.T) {
	RegisterBuiltins()

	types := ListProviderTypes()
	want := []string{"anthropic", "openai", "openai-compatible"}
	if len(types) != len(want) {
		t.Fatalf("ListProviderTypes() = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("ListProviderTypes()[%d] = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient()
	if c.Transport == nil || c.Transport == http.DefaultTransport {
		t.Error("expected an instrumented transport")
	}
}
