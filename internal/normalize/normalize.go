package normalize

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Normalizer coerces raw text into a Reply. It never panics and always
// returns a structurally valid value.
type Normalizer struct {
	contract *Contract
	logger   *slog.Logger
}

// New creates a normalizer for contract.
func New(contract *Contract, logger *slog.Logger) *Normalizer {
	if contract == nil {
		contract = DefaultContract()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{contract: contract, logger: logger}
}

// Contract returns the contract replies are coerced into.
func (n *Normalizer) Contract() *Contract {
	return n.contract
}

// Normalize runs the parse strategies in order and coerces the first object
// found. Text that yields no object becomes the English fallback reply.
func (n *Normalizer) Normalize(raw string) (reply Reply, strategy Strategy) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("normalizer panic recovered", slog.Any("panic", r))
			reply, strategy = n.Fallback(""), StrategyFallback
		}
	}()

	for _, s := range strategies {
		if obj, ok := s.parse(raw); ok {
			return n.coerce(obj), s.name
		}
	}

	n.logger.Debug("no object found in model output", slog.Int("length", len(raw)))
	return n.Fallback(""), StrategyFallback
}

// Fallback is the degraded "keep talking" reply with a localized apology.
func (n *Normalizer) Fallback(language string) Reply {
	return Reply{
		Type:       n.contract.Unknown,
		Confidence: 0,
		Strengths:  []string{},
		Tips:       []string{},
		Message:    n.contract.FallbackMessage(language),
		Ready:      false,
	}
}

// EnforceReadiness lets the tracker overrule the model. When the dialogue is
// not ready every final-answer field is reset; when it is, the reply only
// counts as final if a real type was produced.
func (n *Normalizer) EnforceReadiness(r Reply, ready bool) Reply {
	if !ready {
		r.Type = n.contract.Unknown
		r.Confidence = 0
		r.Strengths = []string{}
		r.Tips = []string{}
		r.Ready = false
		return r
	}
	r.Ready = r.Type != n.contract.Unknown
	return r
}

func (n *Normalizer) coerce(obj map[string]any) Reply {
	c := n.contract
	return Reply{
		Type:       n.coerceType(obj[c.TypeField]),
		Confidence: coerceConfidence(obj[c.ConfidenceField]),
		Strengths:  coerceList(obj[c.StrengthsField], c.MaxItems),
		Tips:       coerceList(obj[c.TipsField], c.MaxItems),
		Message:    coerceMessage(obj[c.MessageField], c.Placeholder),
		Ready:      coerceBool(obj[c.ReadyField]),
	}
}

func (n *Normalizer) coerceType(v any) string {
	s, ok := v.(string)
	if !ok {
		return n.contract.Unknown
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, n.contract.Unknown) {
		return n.contract.Unknown
	}
	if n.contract.TypePattern == nil {
		return s
	}
	upper := strings.ToUpper(s)
	if !n.contract.TypePattern.MatchString(upper) {
		return n.contract.Unknown
	}
	return upper
}

// coerceConfidence accepts numbers and numeric strings. A "%" suffix or a
// whole number in [2, 100] is read as a percentage; anything else above 1 is
// clamped. The result always lies in [0, 1].
func coerceConfidence(v any) float64 {
	var f float64
	percent := false
	switch t := v.(type) {
	case float64:
		f = t
		percent = f >= 2 && f <= 100 && f == math.Trunc(f)
	case string:
		s := strings.TrimSpace(t)
		if trimmed, ok := strings.CutSuffix(s, "%"); ok {
			s, percent = strings.TrimSpace(trimmed), true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
		if !percent {
			percent = f >= 2 && f <= 100 && f == math.Trunc(f)
		}
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if percent {
		f /= 100
	}
	return min(max(f, 0), 1)
}

func coerceList(v any, maxItems int) []string {
	out := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" && (maxItems <= 0 || len(out) < maxItems) {
			out = append(out, s)
		}
	}

	switch t := v.(type) {
	case []any:
		for _, item := range t {
			switch it := item.(type) {
			case string:
				add(it)
			case float64, bool:
				add(fmt.Sprint(it))
			}
		}
	case string:
		add(t)
	}
	return out
}

func coerceMessage(v any, placeholder string) string {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return placeholder
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	}
	return false
}
