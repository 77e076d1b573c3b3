// Package normalize turns raw model text into a reply that always satisfies
// the widget's output contract.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
)

// builtinFallbacks are used for languages the configuration does not cover.
var builtinFallbacks = map[string]string{
	"en": "Sorry, I had trouble with that one. Could you say a bit more so we can keep going?",
	"de": "Entschuldige, da ist etwas schiefgelaufen. Kannst du noch etwas mehr erzählen?",
	"es": "Perdona, algo salió mal. ¿Puedes contarme un poco más para seguir?",
	"fr": "Désolé, quelque chose s'est mal passé. Peux-tu m'en dire un peu plus ?",
}

// Contract describes the reply object: its field names, defaults and limits.
type Contract struct {
	TypeField       string
	ConfidenceField string
	StrengthsField  string
	TipsField       string
	MessageField    string
	ReadyField      string

	// Unknown is the classification sentinel used while still asking
	Unknown string
	// Placeholder replaces a missing or empty message
	Placeholder string
	// TypePattern, when set, is matched against the upper-cased type
	TypePattern *regexp.Regexp
	// MaxItems caps strengths and tips; zero means no cap
	MaxItems int

	fallbacks map[string]string
}

// NewContract builds a contract from configuration.
func NewContract(cfg config.ContractConfig) (*Contract, error) {
	c := &Contract{
		TypeField:       cfg.TypeField,
		ConfidenceField: cfg.ConfidenceField,
		StrengthsField:  cfg.StrengthsField,
		TipsField:       cfg.TipsField,
		MessageField:    cfg.MessageField,
		ReadyField:      cfg.ReadyField,
		Unknown:         cfg.UnknownType,
		Placeholder:     cfg.Placeholder,
		MaxItems:        cfg.MaxItems,
		fallbacks:       make(map[string]string, len(builtinFallbacks)+len(cfg.FallbackMessages)),
	}

	names := []string{c.TypeField, c.ConfidenceField, c.StrengthsField, c.TipsField, c.MessageField, c.ReadyField}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("contract field names must not be empty")
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate contract field name %q", n)
		}
		seen[n] = true
	}
	if c.Unknown == "" {
		c.Unknown = "unknown"
	}

	if cfg.TypePattern != "" {
		re, err := regexp.Compile(cfg.TypePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid type pattern: %w", err)
		}
		c.TypePattern = re
	}

	for lang, msg := range builtinFallbacks {
		c.fallbacks[lang] = msg
	}
	for lang, msg := range cfg.FallbackMessages {
		if msg = strings.TrimSpace(msg); msg != "" {
			c.fallbacks[strings.ToLower(lang)] = msg
		}
	}
	return c, nil
}

// DefaultContract is the MBTI contract with the default field names.
func DefaultContract() *Contract {
	c, err := NewContract(config.ContractConfig{
		TypeField:       "mbti_type",
		ConfidenceField: "confidence",
		StrengthsField:  "strengths",
		TipsField:       "tips",
		MessageField:    "message",
		ReadyField:      "ready",
		UnknownType:     "unknown",
		Placeholder:     "Tell me a little more about yourself.",
		TypePattern:     "^[EI][SN][TF][JP]$",
		MaxItems:        5,
	})
	if err != nil {
		panic(err)
	}
	return c
}

// FallbackMessage returns the apology line for a language, falling back to
// the base language and then English.
func (c *Contract) FallbackMessage(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if msg, ok := c.fallbacks[lang]; ok {
		return msg
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		if msg, ok := c.fallbacks[lang[:i]]; ok {
			return msg
		}
	}
	return c.fallbacks["en"]
}

// Reply is the contract-conforming value returned to the widget.
type Reply struct {
	Type       string
	Confidence float64
	Strengths  []string
	Tips       []string
	Message    string
	Ready      bool
}

// Object renders r with the contract's field names.
func (c *Contract) Object(r Reply) map[string]any {
	strengths, tips := r.Strengths, r.Tips
	if strengths == nil {
		strengths = []string{}
	}
	if tips == nil {
		tips = []string{}
	}
	return map[string]any{
		c.TypeField:       r.Type,
		c.ConfidenceField: r.Confidence,
		c.StrengthsField:  strengths,
		c.TipsField:       tips,
		c.MessageField:    r.Message,
		c.ReadyField:      r.Ready,
	}
}

// Marshal encodes r as a JSON object with the contract's field names.
func (c *Contract) Marshal(r Reply) (json.RawMessage, error) {
	return json.Marshal(c.Object(r))
}
