// Package tools provides the closed set of deterministic helper tools the
// agent may call during a simulation run.
package tools

import (
	"context"
	"fmt"
)

// Tool is the interface every agent tool implements.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters. Failures that the
	// loop should absorb are returned as a user-facing result string with a
	// nil error; a non-nil error is reserved for programming mistakes.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// NotFoundError reports that a grounding lookup produced nothing for the
// requested topic.
type NotFoundError struct {
	Topic string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no grounding available for %q", e.Topic)
}

// InvalidArgumentError reports a tool call with missing or out-of-range
// arguments. The registry degrades it to a neutral ToolResult rather than
// aborting the loop.
type InvalidArgumentError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument: %s", e.Tool, e.Reason)
}

// Registry manages tool registration and execution. It is stateless apart
// from the registration map and safe for concurrent use once populated.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Definitions returns tool definitions in OpenAI function format, in
// registration order so the advertised schema is stable across runs.
func (r *Registry) Definitions() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return result
}

// Execute runs a tool by name. Unknown tools and argument errors degrade to
// a result string the model can read; they never surface as a Go error.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name), nil
	}
	return tool.Execute(ctx, params)
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value. JSON numbers
// arrive as float64, so both forms are accepted.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
