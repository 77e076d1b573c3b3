// Package orchestrator walks an ordered chain of model providers, one attempt
// each, and returns the first raw output that passes the validity filter.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/tokens"
)

const tracerName = "github.com/tjfontaine/persona-chat-gateway/internal/orchestrator"

// DefaultAttemptTimeout applies to chain entries without their own timeout.
const DefaultAttemptTimeout = 10 * time.Second

// Outcome classifies one provider attempt.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeHTTPError     Outcome = "http_error"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeInvalidOutput Outcome = "invalid_output"
)

// Entry is one provider/model pair of the chain. Zero MaxTokens falls back to
// the configured minimum before scaling. A nil Temperature scales from the
// configured minimum; a set one is used as is (see ScaleParams).
type Entry struct {
	Provider    domain.Provider
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature *float64
	JSONMode    bool
}

// Chain is the ordered list of entries tried in priority order.
type Chain []Entry

// Attempt records what happened for one entry. The attempts of a request are
// the only orchestrator state worth logging.
type Attempt struct {
	Provider string                  `json:"provider"`
	Model    string                  `json:"model"`
	Params   domain.GenerationParams `json:"params"`
	Outcome  Outcome                 `json:"outcome"`
	Detail   string                  `json:"detail,omitempty"`
	Duration time.Duration           `json:"duration_ns"`
}

// Result is the winning raw text with the attempts that led to it.
type Result struct {
	Text     string
	Provider string
	Model    string
	Attempts []Attempt
}

// ErrAllProvidersFailed matches every *AllProvidersFailedError via errors.Is.
var ErrAllProvidersFailed = errors.New("all providers failed")

// AllProvidersFailedError is returned when no chain entry produced valid output.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s/%s: %s", a.Provider, a.Model, a.Outcome))
	}
	if len(parts) == 0 {
		return "all providers failed: empty chain"
	}
	return "all providers failed: " + strings.Join(parts, ", ")
}

func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Orchestrator is stateless per call and safe for concurrent use.
type Orchestrator struct {
	bounds  config.GenerationConfig
	counter *tokens.Counter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates an orchestrator. counter may be nil to disable prompt budgeting.
func New(bounds config.GenerationConfig, counter *tokens.Counter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		bounds:  bounds,
		counter: counter,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Invoke tries each chain entry in order and returns the first valid output.
// Attempts are strictly sequential; a failing entry is never retried.
func (o *Orchestrator) Invoke(ctx context.Context, messages []domain.Message, systemPrompt string, chain Chain) (*Result, error) {
	attempts := make([]Attempt, 0, len(chain))

	for i, entry := range chain {
		if ctx.Err() != nil {
			o.logger.Warn("request context done, abandoning provider chain",
				slog.Int("remaining", len(chain)-i),
				slog.String("error", ctx.Err().Error()),
			)
			break
		}

		text, attempt := o.attempt(ctx, messages, systemPrompt, entry, i)
		attempts = append(attempts, attempt)

		if attempt.Outcome == OutcomeSuccess {
			return &Result{
				Text:     text,
				Provider: attempt.Provider,
				Model:    attempt.Model,
				Attempts: attempts,
			}, nil
		}
	}

	return nil, &AllProvidersFailedError{Attempts: attempts}
}

func (o *Orchestrator) attempt(ctx context.Context, messages []domain.Message, systemPrompt string, entry Entry, index int) (string, Attempt) {
	params := ScaleParams(o.bounds, len(messages), entry)
	msgs := o.fitBudget(params.Model, systemPrompt, messages, params.MaxTokens)

	a := Attempt{
		Provider: entry.Provider.Name(),
		Model:    params.Model,
		Params:   params,
	}

	timeout := entry.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	ctx, span := o.tracer.Start(ctx, "provider.attempt", trace.WithAttributes(
		attribute.String("provider", a.Provider),
		attribute.String("model", a.Model),
		attribute.Int("chain.index", index),
		attribute.Int("messages", len(msgs)),
		attribute.Int("max_tokens", params.MaxTokens),
		attribute.Float64("temperature", params.Temperature),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := entry.Provider.Call(callCtx, systemPrompt, msgs, params)
	a.Duration = time.Since(start)

	switch {
	case err != nil:
		a.Outcome, a.Detail = classify(callCtx, err)
	default:
		if reason := CheckOutput(text, o.bounds.MinOutputLength); reason != "" {
			a.Outcome, a.Detail = OutcomeInvalidOutput, reason
		} else {
			a.Outcome = OutcomeSuccess
		}
	}

	span.SetAttributes(attribute.String("outcome", string(a.Outcome)))
	logAttrs := []any{
		slog.String("provider", a.Provider),
		slog.String("model", a.Model),
		slog.Int("chain_index", index),
		slog.String("outcome", string(a.Outcome)),
		slog.Duration("duration", a.Duration),
		slog.Int("max_tokens", params.MaxTokens),
		slog.Float64("temperature", params.Temperature),
	}
	if a.Outcome == OutcomeSuccess {
		span.SetStatus(codes.Ok, "")
		o.logger.Info("provider attempt succeeded", logAttrs...)
	} else {
		span.SetStatus(codes.Error, a.Detail)
		if err != nil {
			span.RecordError(err)
		}
		o.logger.Warn("provider attempt failed", append(logAttrs, slog.String("detail", a.Detail))...)
	}

	return text, a
}

// classify maps a provider error to an outcome and a loggable detail.
func classify(callCtx context.Context, err error) (Outcome, string) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout, "deadline exceeded"
	}
	var statusErr *domain.StatusError
	if errors.As(err, &statusErr) {
		return OutcomeHTTPError, fmt.Sprintf("status %d", statusErr.StatusCode)
	}
	return OutcomeHTTPError, err.Error()
}
