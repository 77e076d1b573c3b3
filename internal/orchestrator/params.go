package orchestrator

import (
	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/tokens"
)

// Hard limits applied on top of whatever the configuration allows.
const (
	HardMinTemperature = 0.0
	HardMaxTemperature = 1.2
	HardMinTokens      = 64
	HardMaxTokens      = 4096
)

// ScaleParams grows temperature and token budget mildly with the message
// count, starting from the entry's own values (or the configured minimums)
// and clamping into the configured range intersected with the hard limits.
//
// An entry that sets Temperature pins it: no per-turn step, and only the
// configured maximum and the hard limits apply, so 0 stays 0.
func ScaleParams(bounds config.GenerationConfig, messageCount int, entry Entry) domain.GenerationParams {
	loT := max(bounds.MinTemperature, HardMinTemperature)
	hiT := min(bounds.MaxTemperature, HardMaxTemperature)
	if hiT < loT {
		hiT = loT
	}
	loN := max(bounds.MinTokens, HardMinTokens)
	hiN := min(bounds.MaxTokens, HardMaxTokens)
	if hiN < loN {
		hiN = loN
	}

	maxTokens := entry.MaxTokens
	if maxTokens <= 0 {
		maxTokens = bounds.MinTokens
	}

	n := max(messageCount, 0)
	maxTokens += bounds.TokenStep * n

	var temperature float64
	if entry.Temperature != nil {
		temperature = clamp(*entry.Temperature, HardMinTemperature, hiT)
	} else {
		temperature = clamp(bounds.MinTemperature+bounds.TemperatureStep*float64(n), loT, hiT)
	}

	return domain.GenerationParams{
		Model:       entry.Model,
		Temperature: temperature,
		MaxTokens:   clamp(maxTokens, loN, hiN),
		JSONMode:    entry.JSONMode,
	}
}

func clamp[T int | float64](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// fitBudget drops the oldest messages until the prompt plus the reply budget
// fits the context window. The latest user turn is never dropped.
func (o *Orchestrator) fitBudget(model, system string, messages []domain.Message, maxTokens int) []domain.Message {
	window := o.bounds.ContextWindow
	if o.counter == nil || window <= 0 {
		return messages
	}

	lastUser := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			lastUser = i
			break
		}
	}

	msgs := messages
	dropped := 0
	for lastUser-dropped > 0 && o.count(model, system, msgs)+maxTokens > window {
		msgs = msgs[1:]
		dropped++
	}
	if dropped > 0 {
		o.logger.Debug("trimmed transcript to fit context window",
			"model", model, "dropped", dropped, "window", window)
	}
	return msgs
}

func (o *Orchestrator) count(model, system string, messages []domain.Message) int {
	n, err := o.counter.CountChat(model, system, messages)
	if err == nil {
		return n
	}
	total := tokens.Estimate(system)
	for _, m := range messages {
		total += tokens.Estimate(m.Content)
	}
	return total
}
