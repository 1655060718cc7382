// Package registry holds the fixed set of tools the server exposes.
package registry

import (
	"context"

	"github.com/pkg/errors"

	"chat-help-mcp/internal/schema"
)

var (
	// ErrDuplicateName is returned when a tool name is registered twice.
	ErrDuplicateName = errors.New("tool already registered")
	// ErrToolNotFound is returned when resolving a name that was never registered.
	ErrToolNotFound = errors.New("tool not found")
)

// Tool is the capability every registered tool implements. Implementations receive only their own
// validated arguments, must not depend on session state and must tolerate concurrent invocation.
type Tool interface {
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ToolFunc adapts a plain function to Tool.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Execute calls f.
func (f ToolFunc) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Descriptor is the public description of a tool.
type Descriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	InputSchema schema.Schema `json:"inputSchema"`
}

// Entry pairs a descriptor with its executable.
type Entry struct {
	Descriptor
	Tool Tool
}

// Registry maps tool names to entries and remembers insertion order.
// It is populated at startup and only read afterwards, so reads take no lock.
type Registry struct {
	order   []string
	entries map[string]Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a tool. It must not be called once the registry is being served.
func (r *Registry) Register(d Descriptor, t Tool) error {
	if d.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if t == nil {
		return errors.Errorf("tool %q has no executable", d.Name)
	}
	if _, exists := r.entries[d.Name]; exists {
		return errors.Wrapf(ErrDuplicateName, "register %q", d.Name)
	}
	r.entries[d.Name] = Entry{Descriptor: d, Tool: t}
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(d Descriptor, t Tool) {
	if err := r.Register(d, t); err != nil {
		panic(err)
	}
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].Descriptor)
	}
	return out
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, errors.Wrapf(ErrToolNotFound, "resolve %q", name)
	}
	return e, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
