package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: "text", Output: &buf})

	logger.Debug("agent.node.assistant", "messages", 2)

	out := buf.String()
	assert.Contains(t, out, "agent.node.assistant")
	assert.Contains(t, out, "messages=2")
}

func TestNewJSONLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	out := buf.String()
	assert.False(t, strings.Contains(out, "dropped"))
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestNoOpLoggerDoesNotPanic(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("a")
	l.Info("b", "k", "v")
	l.Warn("c")
	l.Error("d")
}
