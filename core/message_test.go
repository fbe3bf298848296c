package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendOnly(t *testing.T) {
	conv := NewConversation(HumanMessage("hello"))
	conv.Append(SystemMessage("be helpful"), AIMessage("hi"))

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleHuman, msgs[0].Role)
	assert.Equal(t, RoleSystem, msgs[1].Role)
	assert.Equal(t, RoleAI, msgs[2].Role)

	// Mutating the snapshot must not affect the conversation.
	msgs[0].Content = "tampered"
	fresh := conv.Messages()
	assert.Equal(t, "hello", fresh[0].Content)
}

func TestConversationLast(t *testing.T) {
	conv := NewConversation()
	_, ok := conv.Last()
	assert.False(t, ok)

	conv.Append(HumanMessage("q"))
	last, ok := conv.Last()
	require.True(t, ok)
	assert.Equal(t, "q", last.Content)
}

func TestMessageHasToolCalls(t *testing.T) {
	plain := AIMessage("42")
	assert.False(t, plain.HasToolCalls())

	withCall := Message{
		Role:      RoleAI,
		ToolCalls: []ToolCallRequest{{ID: NewCallID(), Name: "multiply", Args: map[string]any{"a": 6, "b": 7}}},
	}
	assert.True(t, withCall.HasToolCalls())
}

func TestStreamDrainConcatenatesInOrder(t *testing.T) {
	ch := make(chan Fragment, 4)
	ch <- Fragment{Text: "Hel"}
	ch <- Fragment{Text: "lo "}
	ch <- Fragment{Text: "world"}
	close(ch)

	text, err := NewStream(ch).Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestStreamDrainStopsAtErrorFragment(t *testing.T) {
	boom := errors.New("backend gone")
	ch := make(chan Fragment, 2)
	ch <- Fragment{Text: "partial"}
	ch <- Fragment{Err: boom}
	close(ch)

	text, err := NewStream(ch).Drain(context.Background())
	assert.Equal(t, "partial", text)
	assert.ErrorIs(t, err, boom)
}

func TestStreamNextHonorsContext(t *testing.T) {
	ch := make(chan Fragment) // never written to
	s := NewStream(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	f, ok := s.Next(ctx)
	assert.True(t, ok)
	assert.ErrorIs(t, f.Err, context.DeadlineExceeded)
}
