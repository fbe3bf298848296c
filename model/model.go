// Package model defines the chat model capability consumed by the agent
// graph: single-shot invocation with optional bound tools, and incremental
// invocation yielding a finite fragment stream. Concrete backends live in
// subpackages (ollama, anthropic); a scripted mock for tests lives here.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dataninja/ragchat/core"
)

// Sentinel errors surfaced by chat model backends. Wrap with %w so callers can
// match via errors.Is.
var (
	// ErrModelUnavailable indicates the model-serving backend cannot be reached.
	ErrModelUnavailable = errors.New("model backend unavailable")
	// ErrModelTimeout indicates the backend did not answer in time. Timeouts
	// are the adapter's responsibility; the graph threads no timeout of its own.
	ErrModelTimeout = errors.New("model call timed out")
)

// ToolDefinition declaratively exposes a callable tool to the model. The model
// uses Name and Description to decide when to delegate; Parameters is a JSON
// schema object map.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ResponseFormat optionally constrains model output to a structured form.
type ResponseFormat string

const (
	// FormatNone disables output constraints. Required on the tool-binding
	// path: structured-output constraints and tool calling are mutually
	// exclusive in this design.
	FormatNone ResponseFormat = ""
	// FormatJSON constrains output to a JSON object.
	FormatJSON ResponseFormat = "json"
)

// ChatModel is the capability interface the agent graph drives.
//
// Implementations must be safe for concurrent use: one adapter instance is
// shared across parallel invocations.
type ChatModel interface {
	// Invoke performs a single blocking call. The returned AI message carries
	// tool-call requests exactly when the model decided delegation is needed.
	// The conversation must contain at least one message.
	Invoke(ctx context.Context, messages []core.Message, tools []ToolDefinition) (core.Message, error)

	// Stream performs an incremental call producing a finite sequence of
	// non-empty text fragments in emission order. The stream is not
	// restartable. No tool binding occurs on this path: it serves only the
	// already-tool-resolved final answer.
	Stream(ctx context.Context, messages []core.Message) (*core.Stream, error)
}

// MockChatModel is a scripted in-memory ChatModel for tests. Each Invoke or
// Stream call pops the next scripted message; Stream emits its content rune by
// rune, so sync and streaming runs over the same script produce identical
// final text.
type MockChatModel struct {
	mu     sync.Mutex
	script []core.Message

	// InvokeErr, when set, fails every Invoke call.
	InvokeErr error
	// StreamErr, when set, fails the Stream call itself.
	StreamErr error
	// StreamFragmentErr, when set, is emitted as the terminal fragment after
	// the scripted content.
	StreamFragmentErr error

	// Requests records the message sequences passed to Invoke and Stream.
	Requests [][]core.Message
	// BoundTools records the tool definitions passed to each Invoke call.
	BoundTools [][]ToolDefinition
}

// NewMockChatModel creates a mock that replays the given messages in order.
func NewMockChatModel(script ...core.Message) *MockChatModel {
	return &MockChatModel{script: script}
}

func (m *MockChatModel) pop(messages []core.Message) core.Message {
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return core.AIMessage(fmt.Sprintf("Mock response to: %s", last))
}

// Invoke implements ChatModel.
func (m *MockChatModel) Invoke(_ context.Context, messages []core.Message, tools []ToolDefinition) (core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, messages)
	m.BoundTools = append(m.BoundTools, tools)

	if m.InvokeErr != nil {
		return core.Message{}, m.InvokeErr
	}
	if len(messages) == 0 {
		return core.Message{}, fmt.Errorf("no messages provided")
	}
	return m.pop(messages), nil
}

// Stream implements ChatModel.
func (m *MockChatModel) Stream(_ context.Context, messages []core.Message) (*core.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, messages)

	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	next := m.pop(messages)
	fragErr := m.StreamFragmentErr

	ch := make(chan core.Fragment, len(next.Content)+1)
	go func() {
		defer close(ch)
		for _, r := range next.Content {
			ch <- core.Fragment{Text: string(r)}
		}
		if fragErr != nil {
			ch <- core.Fragment{Err: fragErr}
		}
	}()
	return core.NewStream(ch), nil
}
