package domain

import "strings"

// Role identifies who authored a message in a dialogue.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem is only ever produced internally when a provider request is
	// assembled; inbound transcripts may not contain it.
	RoleSystem Role = "system"
)

// Valid reports whether r may appear in an inbound transcript.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of a conversation. Transcripts are owned by the caller
// and handed to the core as a snapshot per request.
type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// UserTurns returns the user-authored messages of a transcript in order.
func UserTurns(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// LastUserContent returns the content of the most recent user message, or ""
// when there is none.
func LastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
