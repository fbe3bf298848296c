package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataninja/ragchat/core"
)

func TestMockChatModelReplaysScript(t *testing.T) {
	m := NewMockChatModel(core.AIMessage("first"), core.AIMessage("second"))

	resp, err := m.Invoke(context.Background(), []core.Message{core.HumanMessage("q")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	resp, err = m.Invoke(context.Background(), []core.Message{core.HumanMessage("q")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	// Script exhausted: fall back to echoing the last message.
	resp, err = m.Invoke(context.Background(), []core.Message{core.HumanMessage("ping")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: ping", resp.Content)
}

func TestMockChatModelRejectsEmptyConversation(t *testing.T) {
	m := NewMockChatModel()
	_, err := m.Invoke(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestMockChatModelStreamMatchesInvoke(t *testing.T) {
	script := []core.Message{core.AIMessage("The answer is 42.")}

	sync := NewMockChatModel(script...)
	resp, err := sync.Invoke(context.Background(), []core.Message{core.HumanMessage("q")}, nil)
	require.NoError(t, err)

	streaming := NewMockChatModel(script...)
	stream, err := streaming.Stream(context.Background(), []core.Message{core.HumanMessage("q")})
	require.NoError(t, err)
	text, err := stream.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, resp.Content, text)
}

func TestMockChatModelStreamTerminalError(t *testing.T) {
	boom := errors.New("connection reset")
	m := NewMockChatModel(core.AIMessage("par"))
	m.StreamFragmentErr = boom

	stream, err := m.Stream(context.Background(), []core.Message{core.HumanMessage("q")})
	require.NoError(t, err)
	text, err := stream.Drain(context.Background())
	assert.Equal(t, "par", text)
	assert.ErrorIs(t, err, boom)
}

func TestMockChatModelRecordsBoundTools(t *testing.T) {
	m := NewMockChatModel(core.AIMessage("ok"))
	defs := []ToolDefinition{{Name: "multiply", Description: "Multiply two numbers"}}

	_, err := m.Invoke(context.Background(), []core.Message{core.HumanMessage("q")}, defs)
	require.NoError(t, err)
	require.Len(t, m.BoundTools, 1)
	assert.Equal(t, "multiply", m.BoundTools[0][0].Name)
}
