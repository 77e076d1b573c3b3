package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use a double
// underscore, e.g. CHATGATE_SERVER__PORT=9000.
const EnvPrefix = "CHATGATE_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Gate       GateConfig       `koanf:"gate"`
	Dialogue   DialogueConfig   `koanf:"dialogue"`
	Prompt     PromptConfig     `koanf:"prompt"`
	Generation GenerationConfig `koanf:"generation"`
	Providers  []ProviderConfig `koanf:"providers"`
	Contract   ContractConfig   `koanf:"contract"`
	Storage    StorageConfig    `koanf:"storage"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	TrustProxy     bool          `koanf:"trust_proxy"` // honor X-Forwarded-For / X-Real-IP
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type GateConfig struct {
	HashSecret       string          `koanf:"hash_secret"`
	RateLimit        RateLimitConfig `koanf:"rate_limit"`
	Global           GlobalConfig    `koanf:"global"`
	MaxMessages      int             `koanf:"max_messages"`
	MaxContentLength int             `koanf:"max_content_length"`
	MinContentLength int             `koanf:"min_content_length"`
}

type RateLimitConfig struct {
	Limit         int           `koanf:"limit"`
	Window        time.Duration `koanf:"window"`
	Retention     time.Duration `koanf:"retention"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// GlobalConfig caps admitted requests across all clients. A zero rate disables it.
type GlobalConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

type DialogueConfig struct {
	MinUserMessages      int  `koanf:"min_user_messages"`
	GoodQualityThreshold int  `koanf:"good_quality_threshold"`
	MinAnswerLength      int  `koanf:"min_answer_length"`
	GoodAnswerLength     int  `koanf:"good_answer_length"`
	IncludeAssistant     bool `koanf:"include_assistant"`
}

type PromptConfig struct {
	SystemTemplate string `koanf:"system_template"`
	TemplateFile   string `koanf:"template_file"`
}

// GenerationConfig bounds the sampling parameters the orchestrator may use.
type GenerationConfig struct {
	MinTemperature  float64 `koanf:"min_temperature"`
	MaxTemperature  float64 `koanf:"max_temperature"`
	TemperatureStep float64 `koanf:"temperature_step"`
	MinTokens       int     `koanf:"min_tokens"`
	MaxTokens       int     `koanf:"max_tokens"`
	TokenStep       int     `koanf:"token_step"`
	ContextWindow   int     `koanf:"context_window"`
	MinOutputLength int     `koanf:"min_output_length"`
}

type ProviderConfig struct {
	Name        string        `koanf:"name"`
	Type        string        `koanf:"type"` // openai, anthropic
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature *float64      `koanf:"temperature"` // unset scales from generation.min_temperature
	JSONMode    bool          `koanf:"json_mode"`   // provider accepts a structured-output hint
}

// ContractConfig names the fields of the reply object the widget expects.
type ContractConfig struct {
	TypeField        string            `koanf:"type_field"`
	ConfidenceField  string            `koanf:"confidence_field"`
	StrengthsField   string            `koanf:"strengths_field"`
	TipsField        string            `koanf:"tips_field"`
	MessageField     string            `koanf:"message_field"`
	ReadyField       string            `koanf:"ready_field"`
	UnknownType      string            `koanf:"unknown_type"`
	Placeholder      string            `koanf:"placeholder"`
	TypePattern      string            `koanf:"type_pattern"`
	MaxItems         int               `koanf:"max_items"`
	FallbackMessages map[string]string `koanf:"fallback_messages"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

var defaults = map[string]any{
	"server.port":            8080,
	"server.request_timeout": 30 * time.Second,
	"server.max_body_bytes":  int64(64 * 1024),
	"server.allowed_origins": []string{"http://localhost:3000"},

	"log.level": "info",

	"telemetry.enabled":      false,
	"telemetry.service_name": "persona-chat-gateway",

	"gate.rate_limit.limit":           10,
	"gate.rate_limit.window":          time.Minute,
	"gate.rate_limit.retention":       24 * time.Hour,
	"gate.rate_limit.sweep_interval":  10 * time.Minute,
	"gate.global.requests_per_second": 0.0,
	"gate.global.burst":               0,
	"gate.max_messages":               50,
	"gate.max_content_length":         2000,
	"gate.min_content_length":         1,

	"dialogue.min_user_messages":      3,
	"dialogue.good_quality_threshold": 3,
	"dialogue.min_answer_length":      15,
	"dialogue.good_answer_length":     40,

	"generation.min_temperature":   0.3,
	"generation.max_temperature":   0.9,
	"generation.temperature_step":  0.02,
	"generation.min_tokens":        300,
	"generation.max_tokens":        1000,
	"generation.token_step":        25,
	"generation.context_window":    8192,
	"generation.min_output_length": 10,

	"contract.type_field":       "mbti_type",
	"contract.confidence_field": "confidence",
	"contract.strengths_field":  "strengths",
	"contract.tips_field":       "tips",
	"contract.message_field":    "message",
	"contract.ready_field":      "ready",
	"contract.unknown_type":     "unknown",
	"contract.placeholder":      "Tell me a little more about yourself.",
	"contract.type_pattern":     "^[EI][SN][TF][JP]$",
	"contract.max_items":        5,

	"storage.type":        "sqlite",
	"storage.sqlite.path": "./data/conversations.db",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml from the working directory (if present) and applies
// CHATGATE_ environment overrides on top.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit config path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars and defaults
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = substituteEnvVars(cfg.Providers[i].APIKey)
	}
	cfg.Gate.HashSecret = substituteEnvVars(cfg.Gate.HashSecret)

	if cfg.Contract.FallbackMessages == nil {
		cfg.Contract.FallbackMessages = map[string]string{}
	}
	if _, ok := cfg.Contract.FallbackMessages["en"]; !ok {
		cfg.Contract.FallbackMessages["en"] = "Sorry, I had trouble with that one. Could you say a bit more so we can keep going?"
	}

	return &cfg, nil
}

// Validate reports configuration that would make the service unusable.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if p.Model == "" {
			return fmt.Errorf("provider %s: model is required", p.Name)
		}
	}
	if c.Gate.RateLimit.Limit <= 0 || c.Gate.RateLimit.Window <= 0 {
		return errors.New("gate.rate_limit: limit and window must be positive")
	}
	if c.Gate.MaxContentLength < c.Gate.MinContentLength {
		return errors.New("gate: max_content_length must be >= min_content_length")
	}
	if c.Generation.MinTemperature > c.Generation.MaxTemperature {
		return errors.New("generation: min_temperature must be <= max_temperature")
	}
	if c.Generation.MinTokens > c.Generation.MaxTokens {
		return errors.New("generation: min_tokens must be <= max_tokens")
	}
	switch c.Storage.Type {
	case "sqlite", "memory", "none", "":
	default:
		return fmt.Errorf("storage.type %q is not supported", c.Storage.Type)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
