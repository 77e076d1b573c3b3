package domain

import (
	"context"
	"fmt"
)

// Provider is one hosted language model endpoint.
type Provider interface {
	Name() string

	// Call sends the system prompt and transcript and returns the raw text of
	// the first completion. Non-2xx upstream responses are *StatusError.
	Call(ctx context.Context, system string, messages []Message, params GenerationParams) (string, error)
}

// GenerationParams are the per-attempt sampling parameters.
type GenerationParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider to constrain output to a JSON object when supported
	JSONMode bool
}

// StatusError is returned when an upstream answers with a non-success status.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: upstream status %d", e.Provider, e.StatusCode)
}
