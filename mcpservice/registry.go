package mcpservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// DefaultMaxTools is the registry capacity used when none is configured.
const DefaultMaxTools = 128

// Registry owns an ordered, bounded set of tools. Listing order is
// registration order.
type Registry struct {
	mu    sync.RWMutex
	tools []Tool
	max   int
	log   *slog.Logger
}

// NewRegistry returns an empty registry holding at most max tools. A
// non-positive max selects DefaultMaxTools.
func NewRegistry(max int, log *slog.Logger) *Registry {
	if max <= 0 {
		max = DefaultMaxTools
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{max: max, log: log}
}

// Register appends t.
//
// A tool without a name or handler, or reusing a registered name, is rejected
// with ErrInvalidArgument. Once the registry is full the tool is dropped, the
// drop is logged and ErrRegistryFull is returned; callers may ignore it and
// carry on with the tools already registered.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("%w: tool name is required", ErrInvalidArgument)
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: tool %q has no handler", ErrInvalidArgument, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tools {
		if existing.Name == t.Name {
			return fmt.Errorf("%w: tool %q already registered", ErrInvalidArgument, t.Name)
		}
	}
	if len(r.tools) >= r.max {
		r.log.Warn("mcpservice.register.dropped",
			slog.String("tool", t.Name),
			slog.Int("max_tools", r.max),
		)
		return fmt.Errorf("%w: cannot register %q, limit is %d", ErrRegistryFull, t.Name, r.max)
	}
	r.tools = append(r.tools, t)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// List returns a copy of the registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Descriptors returns the tools/list entries in registration order.
func (r *Registry) Descriptors() []mcp.Tool {
	tools := r.List()
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Descriptor())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Cap returns the maximum number of tools.
func (r *Registry) Cap() int {
	return r.max
}

// Call dispatches to the named tool. An unknown name is ErrNotFound; a
// result without content is ErrEmptyResult.
func (r *Registry) Call(ctx context.Context, name string, args Arguments) (*mcp.CallToolResult, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: tool %q", ErrNotFound, name)
	}
	res, err := t.Handler.CallTool(ctx, args)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Content) == 0 {
		return nil, fmt.Errorf("%w: tool %q", ErrEmptyResult, name)
	}
	return res, nil
}
