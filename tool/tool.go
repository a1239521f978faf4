// Package tool implements the small function calling surface used by the
// tools handler when a model declines a task it cannot answer from text
// alone. Tools declare a JSON schema for their input; arguments are validated
// against it before the tool runs.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sourcegraph/conc/panics"
)

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodePanic      = "PANIC"
)

// Tool is a capability a model can invoke by name.
type Tool interface {
	// Name is the identifier the model uses to call the tool (snake_case).
	Name() string
	// Description tells the model when the tool is useful.
	Description() string
	// Parameters is the JSON schema of the tool input.
	Parameters() *jsonschema.Schema
	// Call runs the tool with already decoded arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolError is returned for every failed tool invocation.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Set is an immutable, name indexed collection of tools.
type Set struct {
	byName map[string]Tool
	order  []Tool
}

// NewSet builds a Set. Names must be non-empty and unique.
func NewSet(tools ...Tool) (*Set, error) {
	s := &Set{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return nil, errors.New("tool without name")
		}
		if _, dup := s.byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		s.byName[t.Name()] = t
		s.order = append(s.order, t)
	}
	return s, nil
}

// Tools returns the tools in registration order.
func (s *Set) Tools() []Tool {
	return append([]Tool(nil), s.order...)
}

// Len returns the number of tools.
func (s *Set) Len() int { return len(s.order) }

// Call looks up name and invokes it. Unknown tools and panics inside a tool
// are reported as *ToolError.
func (s *Set) Call(ctx context.Context, name string, args map[string]any) (result any, err error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, NewToolError(name, "tool not found", CodeNotFound)
	}
	if args == nil {
		args = map[string]any{}
	}

	var pc panics.Catcher
	pc.Try(func() { result, err = t.Call(ctx, args) })
	if r := pc.Recovered(); r != nil {
		return nil, NewToolError(name, fmt.Sprintf("panic: %v", r.Value), CodePanic)
	}
	return result, err
}
