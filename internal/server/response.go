package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// errorBody is the only error shape the widget ever sees.
type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {"error": message}. Only *domain.APIError
// messages reach the caller; anything else becomes a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		apiErr = domain.ErrServer("internal error")
	}
	WriteJSON(w, apiErr.HTTPStatusCode(), errorBody{Error: apiErr.Message})
}
