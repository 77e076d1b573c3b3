package domain

import (
	"encoding/json"
	"time"
)

// Conversation is one completed chat exchange as handed to persistence.
type Conversation struct {
	// ID is assigned by the store when empty
	ID string `json:"id"`

	// Messages is the sanitized transcript the reply was produced for
	Messages []Message `json:"messages"`

	// Reply is the normalized reply object exactly as returned to the client
	Reply json.RawMessage `json:"reply"`

	// Provider and Model identify the chain entry that answered. Empty when degraded.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Language string             `json:"language,omitempty"`
	Status   ConversationStatus `json:"status"`

	// Duration is the wall time spent handling the request
	Duration time.Duration `json:"duration_ns"`

	CreatedAt time.Time `json:"created_at"`
}

// ConversationStatus records whether a real model reply was delivered.
type ConversationStatus string

const (
	ConversationStatusCompleted ConversationStatus = "completed"
	ConversationStatusDegraded  ConversationStatus = "degraded"
)
