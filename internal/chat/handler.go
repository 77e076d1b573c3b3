// Package chat serves the widget endpoint. One request runs admission,
// dialogue analysis, prompt rendering, the provider chain and reply
// normalization, then hands the result to persistence.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjfontaine/persona-chat-gateway/internal/dialogue"
	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/gate"
	"github.com/tjfontaine/persona-chat-gateway/internal/normalize"
	"github.com/tjfontaine/persona-chat-gateway/internal/orchestrator"
	"github.com/tjfontaine/persona-chat-gateway/internal/prompt"
	"github.com/tjfontaine/persona-chat-gateway/internal/server"
	"github.com/tjfontaine/persona-chat-gateway/internal/storage"
)

// Route is the path the widget posts to.
const Route = "/api/chat"

const (
	defaultMaxBodyBytes = 64 * 1024
	saveTimeout         = 5 * time.Second
	localIDPrefix       = "local-"
)

// Request is the inbound body. Messages stays raw so a non-list payload is
// reported as a validation failure rather than a decode error.
type Request struct {
	Messages json.RawMessage `json:"messages"`
	Language string          `json:"language,omitempty"`
}

// Response is returned on every 200.
type Response struct {
	Reply          json.RawMessage `json:"reply"`
	ConversationID string          `json:"conversation_id"`
}

// Handler wires the pipeline components together. Every field except Store is
// required; a nil Store skips persistence.
type Handler struct {
	Gate         *gate.Gate
	Tracker      *dialogue.Tracker
	Prompts      *prompt.Builder
	Orchestrator *orchestrator.Orchestrator
	Chain        orchestrator.Chain
	Normalizer   *normalize.Normalizer
	Store        storage.ConversationStore
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Routes mounts the chat endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.With(server.RateLimitHeadersMiddleware).Post(Route, h.HandleChat)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// HandleChat answers one widget turn. Only admission failures produce a
// non-2xx status; provider and parsing trouble degrade to a fallback reply.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	maxBody := h.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.reject(w, r, domain.ErrTooLarge("request too large").WithDetail(err.Error()))
			return
		}
		h.reject(w, r, domain.ErrInvalidRequest("invalid request body").WithDetail(err.Error()))
		return
	}

	clientKey := server.ClientIP(r)
	if err := h.Gate.Admit(clientKey); err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Type == domain.ErrorTypeRateLimit {
			server.SetRateLimits(ctx, &server.RateLimitInfo{
				Limit:    h.Gate.Limit(),
				Window:   h.Gate.Window(),
				Rejected: true,
			})
		}
		h.reject(w, r, err)
		return
	}
	server.SetRateLimits(ctx, &server.RateLimitInfo{
		Limit:     h.Gate.Limit(),
		Remaining: h.Gate.Remaining(clientKey),
		Window:    h.Gate.Window(),
	})

	messages, err := gate.DecodeMessages(req.Messages)
	if err == nil {
		err = h.Gate.CheckMessages(ctx, messages)
	} else {
		err = domain.ErrInvalidRequest("invalid messages").
			WithCode(domain.ErrorCodeInvalidMessages).
			WithDetail(err.Error())
	}
	if err != nil {
		h.reject(w, r, err)
		return
	}
	messages = h.Gate.SanitizeAll(messages)

	reply, conv := h.respond(ctx, messages, req.Language)
	conv.Duration = time.Since(start)

	body, err := h.Normalizer.Contract().Marshal(reply)
	if err != nil {
		// Marshal of a coerced Reply cannot fail in practice
		server.AddError(ctx, err)
		server.WriteError(w, domain.ErrServer("internal error"))
		return
	}
	conv.Reply = body

	id := h.save(ctx, conv)

	server.AddLogField(ctx, "conversation_id", id)
	server.AddLogField(ctx, "status", string(conv.Status))
	server.AddLogField(ctx, "ready", strconv.FormatBool(reply.Ready))

	server.WriteJSON(w, http.StatusOK, Response{Reply: body, ConversationID: id})
}

// respond produces the contract-conforming reply for a validated transcript.
func (h *Handler) respond(ctx context.Context, messages []domain.Message, language string) (normalize.Reply, *domain.Conversation) {
	conv := &domain.Conversation{
		Messages:  messages,
		Language:  language,
		Status:    domain.ConversationStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	analysis := h.Tracker.Analyze(messages)
	server.AddLogField(ctx, "covered", strconv.Itoa(analysis.CoveredCount()))

	contract := h.Normalizer.Contract()
	system, err := h.Prompts.Render(prompt.NewContext(analysis, language, prompt.Fields{
		Type:       contract.TypeField,
		Confidence: contract.ConfidenceField,
		Strengths:  contract.StrengthsField,
		Tips:       contract.TipsField,
		Message:    contract.MessageField,
		Ready:      contract.ReadyField,
	}, contract.Unknown))
	if err != nil {
		h.logger().ErrorContext(ctx, "prompt render failed", slog.String("error", err.Error()))
		conv.Status = domain.ConversationStatusDegraded
		return h.Normalizer.EnforceReadiness(h.Normalizer.Fallback(language), false), conv
	}

	result, err := h.Orchestrator.Invoke(ctx, messages, system, h.Chain)
	if err != nil {
		server.AddError(ctx, err)
		conv.Status = domain.ConversationStatusDegraded
		if !errors.Is(err, orchestrator.ErrAllProvidersFailed) {
			h.logger().ErrorContext(ctx, "unexpected orchestrator error", slog.String("error", err.Error()))
		}
		return h.Normalizer.EnforceReadiness(h.Normalizer.Fallback(language), false), conv
	}

	conv.Provider = result.Provider
	conv.Model = result.Model
	server.AddLogField(ctx, "provider", result.Provider)
	server.AddLogField(ctx, "model", result.Model)
	server.AddLogField(ctx, "attempts", strconv.Itoa(len(result.Attempts)))

	reply, strategy := h.Normalizer.Normalize(result.Text)
	server.AddLogField(ctx, "strategy", string(strategy))
	if strategy == normalize.StrategyFallback {
		reply = h.Normalizer.Fallback(language)
	}

	return h.Normalizer.EnforceReadiness(reply, analysis.ReadyForFinalAnswer), conv
}

// save persists conv and returns its id. Store failures never reach the
// caller; a local id is substituted instead.
func (h *Handler) save(ctx context.Context, conv *domain.Conversation) string {
	if h.Store == nil {
		return localIDPrefix + uuid.NewString()
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	id, err := h.Store.SaveConversation(saveCtx, conv)
	if err != nil {
		h.logger().WarnContext(ctx, "failed to save conversation",
			slog.String("request_id", server.GetRequestID(ctx)),
			slog.String("error", err.Error()),
		)
		return localIDPrefix + uuid.NewString()
	}
	return id
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	server.WriteError(w, err)
}
