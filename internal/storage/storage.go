// Package storage defines the persistence collaborator for finished
// conversations. Implementations live in the sqlite and memory subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// ErrNotFound is returned when a conversation id is unknown.
var ErrNotFound = errors.New("conversation not found")

// ConversationStore saves transcripts together with the reply they produced.
type ConversationStore interface {
	// SaveConversation stores conv and returns its id, assigning one when
	// conv.ID is empty.
	SaveConversation(ctx context.Context, conv *domain.Conversation) (string, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	Close() error
}
