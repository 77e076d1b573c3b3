package normalize

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
)

const finalJSON = `{"mbti_type":"INTJ","confidence":0.82,"strengths":["Strategic thinking","Independence"],"tips":["Share your plans early"],"message":"You look like an INTJ.","ready":true}`

func newTestNormalizer() *Normalizer {
	return New(DefaultContract(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var want = Reply{
	Type:       "INTJ",
	Confidence: 0.82,
	Strengths:  []string{"Strategic thinking", "Independence"},
	Tips:       []string{"Share your plans early"},
	Message:    "You look like an INTJ.",
	Ready:      true,
}

func TestNormalize_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strategy Strategy
	}{
		{"direct", finalJSON, StrategyDirect},
		{"direct with whitespace", "\n  " + finalJSON + "\n", StrategyDirect},
		{"fenced json", "Here you go:\n```json\n" + finalJSON + "\n```\nHope that helps!", StrategyFenced},
		{"fenced bare", "```\n" + finalJSON + "```", StrategyFenced},
		{"surrounding prose", "Sure! " + finalJSON + " Let me know.", StrategyBraces},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy := n.Normalize(tt.raw)
			assert.Equal(t, tt.strategy, strategy)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalize_FencedBlockReturnedUnchanged(t *testing.T) {
	n := newTestNormalizer()
	inner := `{"mbti_type":"unknown","confidence":0,"strengths":[],"tips":[],"message":"What energizes you?","ready":false}`

	got, strategy := n.Normalize("```json\n" + inner + "\n```")
	require.Equal(t, StrategyFenced, strategy)

	out, err := n.Contract().Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, inner, string(out))
}

func TestNormalize_Repaired(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		msg  string
	}{
		{"unterminated string", `{"mbti_type":"unknown","message":"How do you spend your week`, "How do you spend your week"},
		{"dangling comma", `{"message":"Tell me more","strengths":["a",`, "Tell me more"},
		{"dangling colon", `{"message":"Tell me more","tips":`, "Tell me more"},
		{"trailing escape", `{"message":"ends with \`, "ends with"},
		{"unclosed fence", "```json\n{\"message\":\"cut off\"", "cut off"},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy := n.Normalize(tt.raw)
			assert.Equal(t, StrategyRepaired, strategy)
			assert.Equal(t, tt.msg, got.Message)
			assert.Equal(t, "unknown", got.Type)
		})
	}
}

func TestNormalize_Fallback(t *testing.T) {
	n := newTestNormalizer()
	for _, raw := range []string{"", "   ", "no json here", "[1,2,3]", `"just a string"`, "null", "{]", `{"a":1}}`} {
		got, strategy := n.Normalize(raw)
		assert.Equal(t, StrategyFallback, strategy, "raw %q", raw)
		assert.Equal(t, n.Fallback("en"), got, "raw %q", raw)
	}
}

func TestNormalize_Coercion(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, r Reply)
	}{
		{"lowercase type upper-cased", `{"mbti_type":" enfp "}`, func(t *testing.T, r Reply) {
			assert.Equal(t, "ENFP", r.Type)
		}},
		{"invalid type", `{"mbti_type":"XYZW"}`, func(t *testing.T, r Reply) {
			assert.Equal(t, "unknown", r.Type)
		}},
		{"wrong type kind", `{"mbti_type":42,"message":7,"ready":"yes"}`, func(t *testing.T, r Reply) {
			assert.Equal(t, "unknown", r.Type)
			assert.Equal(t, "Tell me a little more about yourself.", r.Message)
			assert.False(t, r.Ready)
		}},
		{"confidence slightly above one clamped", `{"confidence":1.2}`, func(t *testing.T, r Reply) {
			assert.Equal(t, 1.0, r.Confidence)
		}},
		{"confidence fraction above one clamped", `{"confidence":1.01}`, func(t *testing.T, r Reply) {
			assert.Equal(t, 1.0, r.Confidence)
		}},
		{"confidence above hundred clamped", `{"confidence":150}`, func(t *testing.T, r Reply) {
			assert.Equal(t, 1.0, r.Confidence)
		}},
		{"confidence small percent string", `{"confidence":"1.5%"}`, func(t *testing.T, r Reply) {
			assert.InDelta(t, 0.015, r.Confidence, 1e-9)
		}},
		{"confidence percent", `{"confidence":85}`, func(t *testing.T, r Reply) {
			assert.InDelta(t, 0.85, r.Confidence, 1e-9)
		}},
		{"confidence huge", `{"confidence":1e9}`, func(t *testing.T, r Reply) {
			assert.Equal(t, 1.0, r.Confidence)
		}},
		{"confidence negative", `{"confidence":-3}`, func(t *testing.T, r Reply) {
			assert.Equal(t, 0.0, r.Confidence)
		}},
		{"confidence string", `{"confidence":"0.4"}`, func(t *testing.T, r Reply) {
			assert.InDelta(t, 0.4, r.Confidence, 1e-9)
		}},
		{"confidence percent string", `{"confidence":"70%"}`, func(t *testing.T, r Reply) {
			assert.InDelta(t, 0.7, r.Confidence, 1e-9)
		}},
		{"list capped and cleaned", `{"strengths":["a"," ","b",3,null,{"x":1},"c","d","e","f"]}`, func(t *testing.T, r Reply) {
			assert.Equal(t, []string{"a", "b", "3", "c", "d"}, r.Strengths)
			assert.Equal(t, []string{}, r.Tips)
		}},
		{"single string list", `{"tips":"Take breaks"}`, func(t *testing.T, r Reply) {
			assert.Equal(t, []string{"Take breaks"}, r.Tips)
		}},
		{"ready string", `{"ready":"true"}`, func(t *testing.T, r Reply) {
			assert.True(t, r.Ready)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := n.Normalize(tt.raw)
			tt.check(t, r)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer()
	inputs := []string{
		finalJSON,
		`{"mbti_type":"isfp","confidence":"55%","strengths":"Kind","message":""}`,
		"```json\n{\"tips\":[1,2,3,4,5,6,7]}\n```",
		"garbage",
	}

	for _, raw := range inputs {
		first, _ := n.Normalize(raw)
		encoded, err := n.Contract().Marshal(first)
		require.NoError(t, err)

		second, strategy := n.Normalize(string(encoded))
		assert.Equal(t, StrategyDirect, strategy)
		assert.Equal(t, first, second, "raw %q", raw)
	}
}

func TestNormalize_GarbageNeverBreaksContract(t *testing.T) {
	n := newTestNormalizer()
	faker := gofakeit.New(42)
	contract := n.Contract()

	fragments := []string{"{", "}", "[", "]", `"`, ":", ",", "```", "\\", "null", "true", "\x00", "\xff"}

	for i := 0; i < 500; i++ {
		var b strings.Builder
		for j := faker.Number(0, 12); j > 0; j-- {
			switch faker.Number(0, 3) {
			case 0:
				b.WriteString(faker.Sentence(faker.Number(1, 6)))
			case 1:
				b.WriteString(fragments[faker.Number(0, len(fragments)-1)])
			case 2:
				b.WriteString(`"` + faker.Word() + `":`)
			default:
				b.WriteByte(byte(faker.Number(0, 255)))
			}
		}
		raw := b.String()

		var r Reply
		require.NotPanics(t, func() { r, _ = n.Normalize(raw) }, "raw %q", raw)

		encoded, err := contract.Marshal(r)
		require.NoError(t, err)

		var obj map[string]any
		require.NoError(t, json.Unmarshal(encoded, &obj))
		for _, field := range []string{contract.TypeField, contract.ConfidenceField, contract.StrengthsField, contract.TipsField, contract.MessageField, contract.ReadyField} {
			assert.Contains(t, obj, field)
		}
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
		assert.NotEmpty(t, r.Message)
		assert.NotNil(t, r.Strengths)
		assert.NotNil(t, r.Tips)
	}
}

func TestEnforceReadiness(t *testing.T) {
	n := newTestNormalizer()

	notReady := n.EnforceReadiness(want, false)
	assert.Equal(t, "unknown", notReady.Type)
	assert.Equal(t, 0.0, notReady.Confidence)
	assert.False(t, notReady.Ready)
	assert.Empty(t, notReady.Strengths)
	assert.Empty(t, notReady.Tips)
	assert.Equal(t, want.Message, notReady.Message)

	ready := n.EnforceReadiness(want, true)
	assert.Equal(t, want, ready)

	noType := want
	noType.Type = "unknown"
	assert.False(t, n.EnforceReadiness(noType, true).Ready)

	modelSaysNotReady := want
	modelSaysNotReady.Ready = false
	assert.True(t, n.EnforceReadiness(modelSaysNotReady, true).Ready)
}

func TestFallback_Localized(t *testing.T) {
	c, err := NewContract(config.ContractConfig{
		TypeField: "type", ConfidenceField: "conf", StrengthsField: "s", TipsField: "t",
		MessageField: "msg", ReadyField: "done",
		FallbackMessages: map[string]string{"IT": "Scusa, riprova.", "de": "Nochmal bitte."},
	})
	require.NoError(t, err)
	n := New(c, nil)

	assert.Equal(t, "Scusa, riprova.", n.Fallback("it").Message)
	assert.Equal(t, "Nochmal bitte.", n.Fallback("de-AT").Message)
	assert.Equal(t, builtinFallbacks["fr"], n.Fallback("fr").Message)
	assert.Equal(t, builtinFallbacks["en"], n.Fallback("xx").Message)
	assert.Equal(t, "unknown", n.Fallback("").Type)

	obj := c.Object(n.Fallback("en"))
	assert.Equal(t, false, obj["done"])
	assert.Equal(t, []string{}, obj["s"])
}

func TestNewContract_Errors(t *testing.T) {
	base := config.ContractConfig{
		TypeField: "a", ConfidenceField: "b", StrengthsField: "c", TipsField: "d", MessageField: "e", ReadyField: "f",
	}

	_, err := NewContract(base)
	assert.NoError(t, err)

	dup := base
	dup.ReadyField = "a"
	_, err = NewContract(dup)
	assert.Error(t, err)

	empty := base
	empty.TipsField = ""
	_, err = NewContract(empty)
	assert.Error(t, err)

	badPattern := base
	badPattern.TypePattern = "("
	_, err = NewContract(badPattern)
	assert.Error(t, err)
}
