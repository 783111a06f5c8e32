// Package llm talks to the language model: it selects tools through function calling
// and writes prose answers from assembled context.
package llm

import (
	"context"

	"github.com/rcourtman/octopilot/internal/ai/tools"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // Text content
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// System creates a system message
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User creates a user message
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Completer writes a prose answer for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Model is the full language model surface used by the pipeline.
type Model interface {
	Completer
	tools.Selector
}
