package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Gate.RateLimit.Limit != 10 || cfg.Gate.RateLimit.Window != time.Minute {
			t.Errorf("rate limit = %d/%v, want 10/1m", cfg.Gate.RateLimit.Limit, cfg.Gate.RateLimit.Window)
		}
		if cfg.Dialogue.GoodQualityThreshold != 3 {
			t.Errorf("good_quality_threshold = %d, want 3", cfg.Dialogue.GoodQualityThreshold)
		}
		if cfg.Contract.UnknownType != "unknown" {
			t.Errorf("unknown_type = %q, want unknown", cfg.Contract.UnknownType)
		}
		if cfg.Contract.FallbackMessages["en"] == "" {
			t.Error("expected an english fallback message")
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("CHATGATE_SERVER__PORT", "9000")

		cfg, err := LoadFile("")
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("port = %v, want 9000", cfg.Server.Port)
		}
	})

	t.Run("yaml file", func(t *testing.T) {
		t.Setenv("CHATGATE_TEST_SECRET", "pepper")
		t.Setenv("CHATGATE_TEST_KEY", "sk-test")

		cfg, err := LoadFile(filepath.Join("testdata", "config.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Port != 9090 {
			t.Errorf("port = %v, want 9090", cfg.Server.Port)
		}
		if cfg.Gate.HashSecret != "pepper" {
			t.Errorf("hash_secret = %q, want pepper", cfg.Gate.HashSecret)
		}
		if cfg.Gate.RateLimit.Window != 30*time.Second {
			t.Errorf("window = %v, want 30s", cfg.Gate.RateLimit.Window)
		}
		if len(cfg.Providers) != 2 {
			t.Fatalf("providers = %d, want 2", len(cfg.Providers))
		}
		if cfg.Providers[0].APIKey != "sk-test" {
			t.Errorf("api_key = %q, want sk-test", cfg.Providers[0].APIKey)
		}
		if cfg.Providers[0].Timeout != 4*time.Second || !cfg.Providers[0].JSONMode {
			t.Errorf("provider[0] = %+v", cfg.Providers[0])
		}
		if cfg.Providers[0].Temperature != nil {
			t.Errorf("provider[0] temperature = %v, want unset", *cfg.Providers[0].Temperature)
		}
		if temp := cfg.Providers[1].Temperature; temp == nil || *temp != 0 {
			t.Errorf("provider[1] temperature = %v, want explicit 0", temp)
		}
		if cfg.Contract.FallbackMessages["de"] == "" || cfg.Contract.FallbackMessages["en"] == "" {
			t.Errorf("fallback messages = %v", cfg.Contract.FallbackMessages)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFile("")
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		cfg.Providers = []ProviderConfig{{Name: "p", Type: "openai", Model: "m"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no providers", func(c *Config) { c.Providers = nil }, true},
		{"duplicate provider", func(c *Config) { c.Providers = append(c.Providers, c.Providers[0]) }, true},
		{"missing model", func(c *Config) { c.Providers[0].Model = "" }, true},
		{"zero limit", func(c *Config) { c.Gate.RateLimit.Limit = 0 }, true},
		{"inverted temperature", func(c *Config) { c.Generation.MinTemperature = 2 }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "${TEST_VAR}", "test-value"},
		{"substitution in string", "prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"no substitution", "plain-string", "plain-string"},
		{"undefined var", "${UNDEFINED_VAR}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
