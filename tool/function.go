package tool

import (
	"context"
	"time"

	"github.com/dataninja/ragchat/internal/util"
	"github.com/dataninja/ragchat/logging"
)

// FunctionTool exposes a plain Go function as a Tool. Arguments are validated
// against the declared schema before execution; failures are normalized to
// *Error with a stable code (VALIDATION_ERROR or EXECUTION_ERROR, custom
// codes pass through unchanged).
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
	logger      logging.Logger
}

// FunctionToolOptions configures optional FunctionTool behavior.
type FunctionToolOptions struct {
	Logger logging.Logger
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// implementation.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	opts := FunctionToolOptions{Logger: logging.NoOpLogger{}}
	for _, optFn := range optFns {
		optFn(&opts)
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      opts.Logger,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct's
// exported fields via reflection.
//
// Example:
//
//	type MultiplyArgs struct {
//	    A int `json:"a" description:"First factor"`
//	    B int `json:"b" description:"Second factor"`
//	}
//
//	t := NewFunctionToolFromStruct("multiply", "Multiply two numbers", MultiplyArgs{}, multiplyFn)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	return NewFunctionTool(name, description, util.SchemaFromStruct(structType), fn, optFns...)
}

// Name returns the unique tool name used in tool-call requests.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural-language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Execute validates args against the declared schema, then runs the wrapped
// function.
func (t *FunctionTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	start := time.Now()
	t.logger.Debug("tool.call.start", "tool", t.name)

	if err := util.ValidateArgs(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &Error{Tool: t.name, Message: err.Error(), Code: CodeValidation}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*Error); ok {
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return nil, toolErr
		}
		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		return nil, &Error{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
