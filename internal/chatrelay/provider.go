// Package chatrelay forwards a visitor's conversation to a language model and
// streams the completion back as server-sent events.
package chatrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Limits applied to inbound conversations.
const (
	MaxMessages       = 50
	MaxMessageRunes   = 4000
	DefaultGatewayURL = "https://ai.gateway.lovable.dev/v1"
)

var (
	// ErrEmptyConversation is returned when a request carries no messages.
	ErrEmptyConversation = errors.New("chatrelay: conversation has no messages")
	// ErrInvalidRole is returned for messages outside the user/assistant roles.
	ErrInvalidRole = errors.New("chatrelay: invalid message role")
	// ErrConversationTooLarge is returned when a request exceeds the relay limits.
	ErrConversationTooLarge = errors.New("chatrelay: conversation too large")
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body accepted by the chat relay.
type Request struct {
	Messages []Message `json:"messages"`
}

// Validate checks the visitor-supplied conversation.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return ErrEmptyConversation
	}
	if len(r.Messages) > MaxMessages {
		return fmt.Errorf("%w: %d messages", ErrConversationTooLarge, len(r.Messages))
	}
	for i, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidRole, i, m.Role)
		}
		if n := len([]rune(m.Content)); n > MaxMessageRunes {
			return fmt.Errorf("%w: message %d has %d characters", ErrConversationTooLarge, i, n)
		}
	}
	return nil
}

// CompletionRequest is what a Provider receives: the system prompt followed
// by the visitor's turns.
type CompletionRequest struct {
	Model    string
	Messages []Message
}

// NewCompletionRequest prepends the system prompt to the conversation.
func NewCompletionRequest(model string, conversation []Message) CompletionRequest {
	msgs := make([]Message, 0, len(conversation)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: SystemPrompt()})
	msgs = append(msgs, conversation...)
	return CompletionRequest{Model: model, Messages: msgs}
}

// System returns the joined system messages.
func (c CompletionRequest) System() string {
	var parts []string
	for _, m := range c.Messages {
		if m.Role == RoleSystem && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Turns returns the non-system messages with blank content dropped.
func (c CompletionRequest) Turns() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Role == RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Provider opens a streaming completion. The returned body is an SSE stream
// of OpenAI-style chunks terminated by "data: [DONE]".
type Provider interface {
	Name() string
	Open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error)
}

// UpstreamError reports a non-success status from the model provider.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chatrelay: upstream returned %d", e.Status)
	}
	return fmt.Sprintf("chatrelay: upstream returned %d: %s", e.Status, e.Body)
}
