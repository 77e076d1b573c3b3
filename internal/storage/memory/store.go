// Package memory is an in-process ConversationStore for tests and for
// deployments that do not need durable transcripts.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/storage"
)

// Store is an in-memory implementation of storage.ConversationStore
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

var _ storage.ConversationStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		conversations: make(map[string]*domain.Conversation),
	}
}

func (s *Store) SaveConversation(ctx context.Context, conv *domain.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if _, exists := s.conversations[conv.ID]; exists {
		return "", fmt.Errorf("conversation %s already exists", conv.ID)
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	s.conversations[conv.ID] = clone(conv)
	return conv.ID, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return clone(conv), nil
}

// Len returns the number of stored conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func (s *Store) Close() error {
	return nil
}

// clone copies the slices so callers cannot mutate stored state.
func clone(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Messages = append([]domain.Message(nil), c.Messages...)
	out.Reply = append(json.RawMessage(nil), c.Reply...)
	return &out
}
