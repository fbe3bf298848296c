package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataninja/ragchat/core"
)

func TestOptionsAcceptPlainModelString(t *testing.T) {
	m := New(func(o *Options) {
		o.Model = "claude-sonnet-4-0"
		o.MaxTokens = 1024
	})

	params := m.buildParams([]core.Message{core.HumanMessage("hi")}, nil)
	assert.Equal(t, sdk.Model("claude-sonnet-4-0"), params.Model)
	assert.Equal(t, int64(1024), params.MaxTokens)
}

func TestDefaultModelCarriesThrough(t *testing.T) {
	m := New()
	require.NotEmpty(t, m.opts.Model)

	params := m.buildParams([]core.Message{core.HumanMessage("hi")}, nil)
	assert.Equal(t, sdk.Model(m.opts.Model), params.Model)
}
