// Package tokens estimates prompt sizes with tiktoken so the orchestrator can
// keep requests inside a model's context window.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// perMessageOverhead approximates the role/separator tokens chat formats add.
const perMessageOverhead = 4

// Counter counts tokens for chat transcripts. Non-OpenAI models are counted
// with cl100k_base, which is close enough for budgeting.
type Counter struct {
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewCounter creates a new token counter.
func NewCounter() *Counter {
	return &Counter{
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// modelToEncoding picks the encoding for a model name.
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	// Strip router prefixes such as "openai/gpt-4o"
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

// getCodec returns the cached codec for a model.
func (c *Counter) getCodec(model string) (tokenizer.Codec, error) {
	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// CountText counts tokens for a plain text string.
func (c *Counter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountChat counts the system prompt plus every message, including a small
// per-message overhead.
func (c *Counter) CountChat(model, system string, messages []domain.Message) (int, error) {
	total := 0
	if system != "" {
		n, err := c.CountText(model, system)
		if err != nil {
			return 0, err
		}
		total += n + perMessageOverhead
	}
	for _, m := range messages {
		n, err := c.CountText(model, m.Content)
		if err != nil {
			return 0, err
		}
		total += n + perMessageOverhead
	}
	return total, nil
}

// Estimate is the fallback used when a codec cannot be loaded: roughly four
// characters per token.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}
