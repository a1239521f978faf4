package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// FunctionTool exposes a plain Go function as a Tool. Arguments are validated
// against the declared schema before fn runs. A FunctionTool holds no mutable
// state after construction and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  *jsonschema.Schema
	fn          func(ctx context.Context, args map[string]any) (any, error)

	resolveOnce sync.Once
	resolved    *jsonschema.Resolved
	resolveErr  error
}

// NewFunctionTool constructs a FunctionTool.
//
//	sum := tool.NewFunctionTool("sum", "Add two numbers.",
//		&jsonschema.Schema{
//			Type: "object",
//			Properties: map[string]*jsonschema.Schema{
//				"a": {Type: "number"},
//				"b": {Type: "number"},
//			},
//			Required: []string{"a", "b"},
//		},
//		func(_ context.Context, args map[string]any) (any, error) {
//			return args["a"].(float64) + args["b"].(float64), nil
//		},
//	)
func NewFunctionTool(
	name, description string,
	parameters *jsonschema.Schema,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() *jsonschema.Schema { return t.parameters }

// Call validates args and invokes the wrapped function. A *ToolError returned
// by the function is forwarded unchanged; other errors become EXECUTION_ERROR.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := t.validate(args); err != nil {
		return nil, NewToolError(t.name, fmt.Sprintf("parameter validation failed: %v", err), CodeValidation)
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, NewToolError(t.name, err.Error(), CodeExecution)
	}
	return result, nil
}

func (t *FunctionTool) validate(args map[string]any) error {
	if t.parameters == nil {
		return nil
	}
	t.resolveOnce.Do(func() {
		t.resolved, t.resolveErr = t.parameters.Resolve(nil)
	})
	if t.resolveErr != nil {
		return fmt.Errorf("invalid schema: %w", t.resolveErr)
	}
	return t.resolved.Validate(args)
}
