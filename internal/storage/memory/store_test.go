package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/storage"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	conv := &domain.Conversation{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
		Reply:    json.RawMessage(`{"ready":false}`),
		Status:   domain.ConversationStatusCompleted,
	}

	id, err := store.SaveConversation(ctx, conv)
	if err != nil {
		t.Fatalf("SaveConversation() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	// Mutating the caller's copy must not leak into the store
	conv.Messages[0].Content = "changed"

	got, err := store.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if got.Messages[0].Content != "hi" {
		t.Errorf("stored message mutated: %q", got.Messages[0].Content)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.GetConversation(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.SaveConversation(ctx, &domain.Conversation{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveConversation(ctx, &domain.Conversation{ID: "a"}); err == nil {
		t.Error("expected duplicate error")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.SaveConversation(context.Background(), &domain.Conversation{}); err != nil {
				t.Errorf("SaveConversation() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if store.Len() != 50 {
		t.Errorf("Len() = %d, want 50", store.Len())
	}
}
