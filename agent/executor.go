package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/logging"
	"github.com/dataninja/ragchat/tool"
)

// contextMessageFormat directs the model to answer from the injected tool
// result without invoking further tools. The serialized result is embedded in
// the message text.
const contextMessageFormat = "The result of the %s operation is: %s. " +
	"Now, please respond with a detailed answer and explanation in natural language without calling any tools. " +
	"Do not make up any information. Only use the context provided by the tool to answer accurately and truthfully."

// Executor implements the tool-call execution protocol shared by the graph's
// tool node: match each requested invocation against the registry, execute it
// and fold the result back into the conversation as a context message.
type Executor struct {
	registry *tool.Registry
	logger   logging.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *tool.Registry, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{registry: registry, logger: logger}
}

// ExecuteCalls processes the batch of requests from one AI message in the
// order the model emitted them. Calls run sequentially, not concurrently, so
// context messages land in request order. An unregistered tool name is skipped
// silently rather than failing the turn. A tool's own failure propagates to
// the caller with no partial context message appended for that call.
//
// The follow-up model invocation that consumes the updated conversation is the
// graph's responsibility: exactly one per batch, never one per call.
func (e *Executor) ExecuteCalls(ctx context.Context, conv *core.Conversation, calls []core.ToolCallRequest) error {
	for _, call := range calls {
		impl, ok := e.registry.Lookup(call.Name)
		if !ok {
			e.logger.Warn("agent.tool.unknown", "tool", call.Name, "call_id", call.ID)
			continue
		}

		result, err := impl.Execute(ctx, call.Args)
		if err != nil {
			return fmt.Errorf("execute tool %s: %w", call.Name, err)
		}

		conv.Append(core.ContextMessage(fmt.Sprintf(contextMessageFormat, call.Name, serializeResult(result))))
		e.logger.Info("agent.tool.executed", "tool", call.Name, "call_id", call.ID)
	}
	return nil
}

// serializeResult renders a tool result for injection into the conversation.
// Strings pass through; everything else is JSON-encoded with a fmt fallback.
func serializeResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		if raw, err := json.Marshal(v); err == nil {
			return string(raw)
		}
		return fmt.Sprintf("%v", v)
	}
}
