package tool

import (
	"context"
	"fmt"
)

// MultiplyArgs declares the arguments of the multiply tool.
type MultiplyArgs struct {
	A int `json:"a" description:"First number"`
	B int `json:"b" description:"Second number"`
}

// NewMultiplyTool returns the pure arithmetic tool: multiply(a, b) -> a*b.
// It has no side effects and no failure modes beyond argument validation.
func NewMultiplyTool(optFns ...func(o *FunctionToolOptions)) *FunctionTool {
	return NewFunctionToolFromStruct(
		"multiply",
		"Multiply two numbers and return their product.",
		MultiplyArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			a, err := intArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := intArg(args, "b")
			if err != nil {
				return nil, err
			}
			return a * b, nil
		},
		optFns...,
	)
}

// intArg tolerates the float64 values JSON decoding produces for integers.
func intArg(args map[string]any, name string) (int, error) {
	switch v := args[name].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %q is not an integer: %v", name, args[name])
	}
}
