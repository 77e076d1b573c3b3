// Package gate implements admission control for the chat endpoint: per-client
// sliding-window rate limiting, an optional global token bucket, transcript
// validation and content sanitization.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/tjfontaine/persona-chat-gateway/internal/config"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// Gate decides whether an inbound call may proceed and cleans its payload.
type Gate struct {
	limiter  *RateLimiter
	global   *rate.Limiter
	validate *validator.Validate
	limit    int
	window   time.Duration
	limits   Limits
	logger   *slog.Logger
}

// New builds a Gate from configuration.
func New(cfg config.GateConfig, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		limiter:  NewRateLimiter(cfg.HashSecret),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limit:    cfg.RateLimit.Limit,
		window:   cfg.RateLimit.Window,
		limits: Limits{
			MaxMessages:      cfg.MaxMessages,
			MaxContentLength: cfg.MaxContentLength,
			MinContentLength: cfg.MinContentLength,
		},
		logger: logger,
	}
	if cfg.Global.RequestsPerSecond > 0 {
		burst := cfg.Global.Burst
		if burst <= 0 {
			burst = int(cfg.Global.RequestsPerSecond) + 1
		}
		g.global = rate.NewLimiter(rate.Limit(cfg.Global.RequestsPerSecond), burst)
	}
	return g
}

// RateLimiter exposes the per-client table, e.g. for the background sweeper.
func (g *Gate) RateLimiter() *RateLimiter {
	return g.limiter
}

// Admit applies the global limiter and then the per-client window.
func (g *Gate) Admit(clientKey string) error {
	if g.global != nil && !g.global.Allow() {
		return domain.ErrOverloaded("service is busy, please retry shortly").
			WithCode(domain.ErrorCodeGlobalLimit)
	}
	if !g.limiter.CheckRateLimit(clientKey, g.limit, g.window) {
		return domain.ErrRateLimit("too many requests, please slow down")
	}
	return nil
}

// Remaining reports the per-client capacity left in the current window.
func (g *Gate) Remaining(clientKey string) int {
	return g.limiter.Remaining(clientKey, g.limit, g.window)
}

// Window returns the configured per-client window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Limit returns the configured per-client limit.
func (g *Gate) Limit() int {
	return g.limit
}

// CheckMessages validates a transcript. The returned APIError carries a
// generic message; the violated rule is logged.
func (g *Gate) CheckMessages(ctx context.Context, messages []domain.Message) error {
	if err := ValidateMessages(g.validate, messages, g.limits); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			g.logger.LogAttrs(ctx, slog.LevelWarn, "payload rejected",
				slog.String("rule", string(verr.Rule)),
				slog.Int("index", verr.Index),
			)
		}
		return domain.ErrInvalidRequest("invalid messages").
			WithCode(domain.ErrorCodeInvalidMessages).
			WithDetail(err.Error())
	}
	return nil
}

// SanitizeAll returns a copy of messages with every content sanitized.
func (g *Gate) SanitizeAll(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, len(messages))
	for i, m := range messages {
		out[i] = domain.Message{Role: m.Role, Content: Sanitize(m.Content, g.limits.MaxContentLength)}
	}
	return out
}
