package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/model"
	"github.com/dataninja/ragchat/tool"
)

// countingMultiply wraps the multiply tool so tests can assert whether the
// tools node ran.
func countingMultiply(t *testing.T, calls *atomic.Int64) tool.Tool {
	t.Helper()
	inner := tool.NewMultiplyTool()
	return tool.NewFunctionTool(inner.Name(), inner.Description(), inner.Parameters(), func(ctx context.Context, args map[string]any) (any, error) {
		calls.Add(1)
		return inner.Execute(ctx, args)
	})
}

func multiplyCall(a, b int) core.Message {
	return core.Message{
		Role: core.RoleAI,
		ToolCalls: []core.ToolCallRequest{{
			ID:   core.NewCallID(),
			Name: "multiply",
			Args: map[string]any{"a": float64(a), "b": float64(b)},
		}},
	}
}

func TestRunToolFreeShortCircuit(t *testing.T) {
	var toolCalls atomic.Int64
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(countingMultiply(t, &toolCalls)))

	mock := model.NewMockChatModel(core.AIMessage("Paris is the capital of France."))
	g := New(mock, reg)

	answer, err := g.Run(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer)
	assert.EqualValues(t, 0, toolCalls.Load(), "tools node must not be entered")

	// Exactly one model call, with the registry bound.
	require.Len(t, mock.Requests, 1)
	require.Len(t, mock.BoundTools[0], 1)
	assert.Equal(t, "multiply", mock.BoundTools[0][0].Name)
}

func TestRunWithSingleToolCall(t *testing.T) {
	var toolCalls atomic.Int64
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(countingMultiply(t, &toolCalls)))

	mock := model.NewMockChatModel(multiplyCall(6, 7), core.AIMessage("42"))
	g := New(mock, reg)

	answer, err := g.Run(context.Background(), "What is 6 times 7?")
	require.NoError(t, err)
	assert.Equal(t, "42", answer)
	assert.EqualValues(t, 1, toolCalls.Load())

	// The follow-up invocation sees the fully assembled conversation:
	// human, system, ai(call), context(result), ai(marker).
	require.Len(t, mock.Requests, 2)
	final := mock.Requests[1]
	require.Len(t, final, 5)
	assert.Equal(t, core.RoleHuman, final[0].Role)
	assert.Equal(t, core.RoleSystem, final[1].Role)
	assert.Equal(t, core.RoleAI, final[2].Role)
	assert.True(t, final[2].HasToolCalls())
	assert.Equal(t, core.RoleContext, final[3].Role)
	assert.Contains(t, final[3].Content, "42")
	assert.Equal(t, core.RoleAI, final[4].Role)
	assert.Equal(t, finalizingMarker, final[4].Content)

	// No tools are bound on the final-answer call.
	assert.Empty(t, mock.BoundTools[1])
}

func TestRunSkipsUnregisteredToolAndStillAnswers(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewMultiplyTool()))

	call := core.Message{
		Role:      core.RoleAI,
		ToolCalls: []core.ToolCallRequest{{ID: core.NewCallID(), Name: "divide", Args: map[string]any{"a": 1.0, "b": 2.0}}},
	}
	mock := model.NewMockChatModel(call, core.AIMessage("I cannot divide."))
	g := New(mock, reg)

	answer, err := g.Run(context.Background(), "What is 1 divided by 2?")
	require.NoError(t, err)
	assert.Equal(t, "I cannot divide.", answer)

	// The skipped call contributed no context message: the follow-up sees
	// human, system, ai(call), ai(marker).
	require.Len(t, mock.Requests, 2)
	final := mock.Requests[1]
	require.Len(t, final, 4)
	assert.Equal(t, finalizingMarker, final[3].Content)
}

func TestRunPropagatesModelError(t *testing.T) {
	reg := tool.NewRegistry()
	mock := model.NewMockChatModel()
	mock.InvokeErr = model.ErrModelUnavailable
	g := New(mock, reg)

	_, err := g.Run(context.Background(), "hello")
	assert.ErrorIs(t, err, model.ErrModelUnavailable)
}

func TestRunPropagatesToolFailure(t *testing.T) {
	failing := tool.NewFunctionToolFromStruct("multiply", "Multiply two numbers", struct{}{}, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("overflow")
	})
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(failing))

	mock := model.NewMockChatModel(multiplyCall(6, 7))
	g := New(mock, reg)

	_, err := g.Run(context.Background(), "What is 6 times 7?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflow")
}

func TestRunOnStreamingGraphIsRejected(t *testing.T) {
	g := New(model.NewMockChatModel(), tool.NewRegistry(), WithStreaming())
	_, err := g.Run(context.Background(), "hello")
	assert.Error(t, err)
}

func drainFragments(t *testing.T, ch <-chan core.Fragment) []string {
	t.Helper()
	var out []string
	for f := range ch {
		require.NoError(t, f.Err)
		out = append(out, f.Text)
	}
	return out
}

func TestRunStreamingMatchesSynchronousAnswer(t *testing.T) {
	script := func() []core.Message {
		return []core.Message{multiplyCall(6, 7), core.AIMessage("The answer is 42.")}
	}
	reg := func() *tool.Registry {
		r := tool.NewRegistry()
		require.NoError(t, r.Register(tool.NewMultiplyTool()))
		return r
	}

	syncAnswer, err := New(model.NewMockChatModel(script()...), reg()).Run(context.Background(), "What is 6 times 7?")
	require.NoError(t, err)

	fragments := drainFragments(t, New(model.NewMockChatModel(script()...), reg(), WithStreaming()).
		RunStreaming(context.Background(), "What is 6 times 7?"))

	assert.Equal(t, syncAnswer, strings.Join(fragments, ""))
	assert.Greater(t, len(fragments), 1, "answer arrives incrementally")
}

func TestRunStreamingToolFreePrompt(t *testing.T) {
	g := New(model.NewMockChatModel(core.AIMessage("Just hello.")), tool.NewRegistry(), WithStreaming())

	fragments := drainFragments(t, g.RunStreaming(context.Background(), "Say hello"))
	assert.Equal(t, []string{"Just hello."}, fragments)
}

func TestRunStreamingReportsErrorsInBand(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewMultiplyTool()))

	mock := model.NewMockChatModel(multiplyCall(6, 7))
	mock.StreamErr = model.ErrModelUnavailable
	g := New(mock, reg, WithStreaming())

	var got []string
	for f := range g.RunStreaming(context.Background(), "What is 6 times 7?") {
		require.NoError(t, f.Err)
		got = append(got, f.Text)
	}
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "Error: "), "got %q", got[0])
}

func TestRunStreamingTerminalBackendFailure(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewMultiplyTool()))

	mock := model.NewMockChatModel(multiplyCall(6, 7), core.AIMessage("partial answer"))
	mock.StreamFragmentErr = errors.New("connection reset")
	g := New(mock, reg, WithStreaming())

	var got []string
	for f := range g.RunStreaming(context.Background(), "What is 6 times 7?") {
		require.NoError(t, f.Err)
		got = append(got, f.Text)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, "Error: connection reset", got[len(got)-1])
}

func TestEndToEndSixTimesSeven(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewMultiplyTool()))

	mock := model.NewMockChatModel(multiplyCall(6, 7), core.AIMessage("42"))
	answer, err := New(mock, reg).Run(context.Background(), "What is 6 times 7?")
	require.NoError(t, err)
	assert.Equal(t, "42", answer)

	streamMock := model.NewMockChatModel(multiplyCall(6, 7), core.AIMessage("42"))
	fragments := drainFragments(t, New(streamMock, reg, WithStreaming()).
		RunStreaming(context.Background(), "What is 6 times 7?"))
	assert.Equal(t, "42", strings.Join(fragments, ""))
}
