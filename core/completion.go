package core

import "context"

// Message roles understood by completion services.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role tagged prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage builds a user message.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// TextCompletionService is the language model capability consumed by the
// engine. Complete is single shot: no streaming and no retry at this layer.
type TextCompletionService interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// CompletionFunc adapts an ordinary function to TextCompletionService.
type CompletionFunc func(ctx context.Context, messages []Message) (string, error)

// Complete implements TextCompletionService.
func (f CompletionFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
