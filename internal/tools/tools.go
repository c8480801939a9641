// Package tools provides the tool registry and the built-in support
// tools the agent can dispatch to.
//
// A tool takes an opaque argument mapping and returns an opaque result
// mapping. Tool failures are part of the result contract: a failing
// tool returns {"error": reason} instead of propagating, so the
// orchestration loop can never crash on tool execution.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var (
	// ErrToolNameEmpty is returned when registering a tool without a name.
	ErrToolNameEmpty = errors.New("tool name is empty")
	// ErrToolExecuteNil is returned when registering a tool without an executor.
	ErrToolExecuteNil = errors.New("tool execute function is nil")
	// ErrToolAlreadyRegistered is returned on duplicate registration.
	ErrToolAlreadyRegistered = errors.New("tool already registered")
)

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) map[string]any

// Tool is a named, side-effecting action the agent may invoke.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does. It is advertised to the
	// decision source alongside the name.
	Description string

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Descriptor is the (name, description) pair advertised to decision sources.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"desc"`
}

// Registry holds the fixed tool set. It is populated once at process
// start and read-only afterwards.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry.
// Returns an error if the tool is invalid or the name is taken.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool registration at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the advertised (name, description) list in a
// stable name order.
func (r *Registry) Descriptors() []Descriptor {
	descriptors := make([]Descriptor, 0, len(r.tools))
	for _, name := range r.Names() {
		descriptors = append(descriptors, Descriptor{
			Name:        name,
			Description: r.tools[name].Description,
		})
	}
	return descriptors
}

// SafeExecute runs a tool, converting any panic into a structured
// error result. The loop relies on this never propagating a failure.
func SafeExecute(ctx context.Context, tool *Tool, args map[string]any) (result map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", tool.Name, "panic", rec)
			result = map[string]any{"error": fmt.Sprintf("tool %s failed: %v", tool.Name, rec)}
		}
	}()

	result = tool.Execute(ctx, args)
	if result == nil {
		result = map[string]any{"error": fmt.Sprintf("tool %s returned no result", tool.Name)}
	}
	return result
}
