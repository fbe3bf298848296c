package core

import "github.com/google/uuid"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks instructions injected ahead of model calls.
	RoleSystem Role = "system"
	// RoleHuman marks the user's prompt.
	RoleHuman Role = "human"
	// RoleAI marks model output, including pure tool-call requests.
	RoleAI Role = "ai"
	// RoleContext marks synthetic messages carrying tool results back into the
	// conversation. Adapters decide how this role is encoded on the wire.
	RoleContext Role = "context"
)

// ToolCallRequest is a model-emitted instruction to invoke a named tool.
// Zero, one or many may appear on a single AI message.
type ToolCallRequest struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is one immutable unit of conversation. Content may be empty when the
// message is a pure tool-call request.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content,omitempty"`
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// HumanMessage builds a human-role message.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage builds an assistant message with plain text content.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// ContextMessage builds a context-role message carrying a tool result.
func ContextMessage(content string) Message {
	return Message{Role: RoleContext, Content: content}
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Conversation is the append-only ordered message sequence accumulated for one
// agent invocation. It is owned by exactly one invocation and never shared
// across concurrent requests, so no locking is required.
type Conversation struct {
	messages []Message
}

// NewConversation creates a conversation seeded with the given messages.
func NewConversation(messages ...Message) *Conversation {
	c := &Conversation{}
	c.Append(messages...)
	return c
}

// Append adds messages at the end. Earlier messages are never removed or
// rewritten; order defines the context window seen by the model.
func (c *Conversation) Append(messages ...Message) {
	c.messages = append(c.messages, messages...)
}

// Len returns the number of messages appended so far.
func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a snapshot of the sequence in append order. The returned
// slice is a copy so callers cannot mutate conversation history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Last returns the most recently appended message, or false when empty.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// NewCallID generates a unique identifier correlating a tool-call request with
// its execution.
func NewCallID() string { return uuid.NewString() }
