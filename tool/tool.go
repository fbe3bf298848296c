// Package tool implements the callable capabilities the model may invoke
// during a conversation: the Tool interface, a FunctionTool adapter with
// schema-validated arguments and the read-only Registry the agent graph binds
// to the chat model.
package tool

import (
	"context"
	"fmt"

	"github.com/dataninja/ragchat/internal/util"
)

// Tool is a named capability the model can choose to invoke.
//
// Implementations must be safe for concurrent use: the registry is built once
// and shared across invocations, so a Tool may be executed from multiple
// requests at the same time.
type Tool interface {
	// Name returns the unique identifier used in tool-call requests.
	Name() string

	// Description is handed to the model so it can decide when to invoke the
	// tool.
	Description() string

	// Parameters returns a JSON-schema object map describing the accepted
	// arguments.
	Parameters() map[string]any

	// Execute runs the tool. The returned value must be serializable to text
	// for injection back into the conversation.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError is re-exported for callers matching argument failures.
type ValidationError = util.ValidationError

// Error reports a failure during tool execution.
type Error struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error codes used by FunctionTool.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}
