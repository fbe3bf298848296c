package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/tool"
)

func echoTool(name string) tool.Tool {
	return tool.NewFunctionToolFromStruct(name, "Echo the input", struct{}{}, func(_ context.Context, args map[string]any) (any, error) {
		return args["value"], nil
	})
}

func TestExecutorAppendsContextMessagesInRequestOrder(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(echoTool("first")))
	require.NoError(t, reg.Register(echoTool("second")))

	conv := core.NewConversation(core.HumanMessage("q"))
	calls := []core.ToolCallRequest{
		{ID: core.NewCallID(), Name: "first", Args: map[string]any{"value": "one"}},
		{ID: core.NewCallID(), Name: "second", Args: map[string]any{"value": "two"}},
	}

	err := NewExecutor(reg, nil).ExecuteCalls(context.Background(), conv, calls)
	require.NoError(t, err)

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleContext, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "the first operation")
	assert.Contains(t, msgs[1].Content, "one")
	assert.Equal(t, core.RoleContext, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "the second operation")
	assert.Contains(t, msgs[2].Content, "two")
}

func TestExecutorSkipsUnregisteredToolSilently(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(echoTool("known")))

	conv := core.NewConversation(core.HumanMessage("q"))
	calls := []core.ToolCallRequest{
		{Name: "no_such_tool", Args: map[string]any{}},
		{Name: "known", Args: map[string]any{"value": "ok"}},
	}

	err := NewExecutor(reg, nil).ExecuteCalls(context.Background(), conv, calls)
	require.NoError(t, err)

	// Only the resolvable call produced a context message.
	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "the known operation")
}

func TestExecutorPropagatesToolFailureWithoutPartialContext(t *testing.T) {
	boom := errors.New("tool exploded")
	failing := tool.NewFunctionToolFromStruct("boom", "Always fails", struct{}{}, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, boom
	})
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(failing))

	conv := core.NewConversation(core.HumanMessage("q"))
	err := NewExecutor(reg, nil).ExecuteCalls(context.Background(), conv, []core.ToolCallRequest{{Name: "boom"}})

	require.Error(t, err)
	var toolErr *tool.Error
	assert.ErrorAs(t, err, &toolErr)
	// No partial context message corrupts the conversation.
	assert.Equal(t, 1, conv.Len())
}

func TestSerializeResult(t *testing.T) {
	assert.Equal(t, "plain", serializeResult("plain"))
	assert.Equal(t, "42", serializeResult(42))
	assert.Equal(t, `{"text":"chunk"}`, serializeResult(map[string]any{"text": "chunk"}))
	assert.Equal(t, "", serializeResult(nil))
}
