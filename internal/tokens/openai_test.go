package tokens

import (
	"testing"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

func TestModelToEncoding(t *testing.T) {
	tests := []struct {
		model string
		want  tokenizer.Encoding
	}{
		{"gpt-4o-mini", tokenizer.O200kBase},
		{"openai/gpt-4.1", tokenizer.O200kBase},
		{"o3-mini", tokenizer.O200kBase},
		{"gpt-3.5-turbo", tokenizer.Cl100kBase},
		{"mistralai/mixtral-8x7b-instruct", tokenizer.Cl100kBase},
		{"claude-3-5-haiku-latest", tokenizer.Cl100kBase},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := modelToEncoding(tt.model); got != tt.want {
				t.Errorf("modelToEncoding(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestCountText(t *testing.T) {
	c := NewCounter()

	n, err := c.CountText("gpt-3.5-turbo", "Hello, world!")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if n != 4 {
		t.Errorf("CountText() = %d, want 4", n)
	}

	empty, err := c.CountText("gpt-4o", "")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if empty != 0 {
		t.Errorf("CountText(empty) = %d, want 0", empty)
	}
}

func TestCountChat(t *testing.T) {
	c := NewCounter()
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "Hello, world!"},
		{Role: domain.RoleAssistant, Content: "Hello, world!"},
	}

	withoutSystem, err := c.CountChat("gpt-3.5-turbo", "", msgs)
	if err != nil {
		t.Fatalf("CountChat() error = %v", err)
	}
	if withoutSystem != 2*(4+perMessageOverhead) {
		t.Errorf("CountChat() = %d, want %d", withoutSystem, 2*(4+perMessageOverhead))
	}

	withSystem, err := c.CountChat("gpt-3.5-turbo", "Hello, world!", msgs)
	if err != nil {
		t.Fatalf("CountChat() error = %v", err)
	}
	if withSystem != withoutSystem+4+perMessageOverhead {
		t.Errorf("CountChat() with system = %d", withSystem)
	}
}

func TestEstimate(t *testing.T) {
	if got := Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d", got)
	}
	if got := Estimate("abcdefgh"); got != 2 {
		t.Errorf("Estimate(8 chars) = %d, want 2", got)
	}
}
