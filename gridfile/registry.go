package gridfile

import (
	"context"
	"fmt"
	"log/slog"
)

// Handler holds the Go parts of a task handler referenced from a grid
// file.
type Handler struct {
	// NewInput returns a pointer to the struct the task's arguments block
	// is decoded into, or nil when the handler takes no arguments.
	NewInput func() any

	// Run executes the handler. input is the decoded arguments struct (or
	// nil). The returned value becomes the task node's result.
	Run func(ctx context.Context, input any) (any, error)
}

// Registry maps handler names to their implementations for a single
// loading session.
type Registry struct {
	handlers map[string]*Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds a handler under the given name. Registering the same name
// twice is an error.
func (r *Registry) Register(name string, h *Handler) error {
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("gridfile: handler %q already registered", name)
	}
	slog.Debug("Registering grid handler.", "name", name)
	r.handlers[name] = h
	return nil
}

func (r *Registry) lookup(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}
