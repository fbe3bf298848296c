package ragchat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataninja/ragchat/config"
	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/model"
	"github.com/dataninja/ragchat/tool"
)

func TestAssistantAskWithTool(t *testing.T) {
	chatModel := model.NewMockChatModel(
		core.Message{
			Role: core.RoleAI,
			ToolCalls: []core.ToolCallRequest{
				{ID: core.NewCallID(), Name: "multiply", Args: map[string]any{"a": 6, "b": 7}},
			},
		},
		core.AIMessage("6 times 7 equals 42."),
	)

	assistant, err := New(chatModel, func(o *Options) {
		o.Tools = []tool.Tool{tool.NewMultiplyTool()}
	})
	require.NoError(t, err)

	answer, err := assistant.Ask(context.Background(), "what is 6 times 7?")
	require.NoError(t, err)
	assert.Equal(t, "6 times 7 equals 42.", answer)
}

func TestAssistantAskStream(t *testing.T) {
	chatModel := model.NewMockChatModel(core.AIMessage("Hello there."))
	assistant, err := New(chatModel)
	require.NoError(t, err)

	var sb strings.Builder
	for f := range assistant.AskStream(context.Background(), "hi") {
		require.NoError(t, f.Err)
		sb.WriteString(f.Text)
	}
	assert.Equal(t, "Hello there.", sb.String())
}

func TestAssistantRejectsDuplicateTools(t *testing.T) {
	chatModel := model.NewMockChatModel()
	_, err := New(chatModel, func(o *Options) {
		o.Tools = []tool.Tool{tool.NewMultiplyTool(), tool.NewMultiplyTool()}
	})
	require.Error(t, err)

	var dup *tool.DuplicateToolError
	assert.ErrorAs(t, err, &dup)
}

func TestModelFromSettings(t *testing.T) {
	s := config.Default()
	m, err := ModelFromSettings(s)
	require.NoError(t, err)
	assert.NotNil(t, m)

	s.Provider = config.ProviderAnthropic
	s.AnthropicKey = "sk-test"
	m, err = ModelFromSettings(s)
	require.NoError(t, err)
	assert.NotNil(t, m)

	s.Provider = "nonsense"
	_, err = ModelFromSettings(s)
	require.Error(t, err)
}

func TestFromSettingsUsesConfiguredSystemPrompt(t *testing.T) {
	s := config.Default()
	s.SystemPrompt = "You are a terse assistant."

	assistant, err := FromSettings(s)
	require.NoError(t, err)
	assert.NotNil(t, assistant)
	assert.Zero(t, assistant.Registry().Len())
}
