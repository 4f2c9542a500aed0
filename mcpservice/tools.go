package mcpservice

import (
	"context"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/schema"
)

// ToolHandler executes a tool invocation.
//
// A handler returns a result with at least one content item, or an error. An
// error wrapping ErrInvalidArgument or ErrNotFound is reported to the client
// with the matching JSON-RPC code; any other error becomes an internal error.
// Failures the model should see and react to belong in the result instead:
// set IsError and describe the problem in text content.
type ToolHandler interface {
	CallTool(ctx context.Context, args Arguments) (*mcp.CallToolResult, error)
}

// ToolHandlerFunc adapts a function to ToolHandler.
type ToolHandlerFunc func(ctx context.Context, args Arguments) (*mcp.CallToolResult, error)

func (f ToolHandlerFunc) CallTool(ctx context.Context, args Arguments) (*mcp.CallToolResult, error) {
	return f(ctx, args)
}

// Tool pairs a tool description with its handler. A null InputSchema lists
// the tool without an input schema.
type Tool struct {
	Name        string
	Description string
	InputSchema schema.Schema
	Handler     ToolHandler
}

// Descriptor returns the tools/list entry for t.
func (t Tool) Descriptor() mcp.Tool {
	d := mcp.Tool{Name: t.Name, Description: t.Description}
	if !t.InputSchema.IsNull() {
		in := t.InputSchema
		d.InputSchema = &in
	}
	return d
}

// ToolRequest is the container for tool call input.
// It is generic over the typed argument struct A.
type ToolRequest[A any] struct {
	name string
	raw  Arguments
	args A
}

func (r *ToolRequest[A]) Name() string            { return r.name }
func (r *ToolRequest[A]) RawArguments() Arguments { return r.raw }
func (r *ToolRequest[A]) Args() A                 { return r.args }

// ToolOption configures NewTool and TypedTool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description               string
	allowAdditionalProperties bool // default false (strict)
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithToolAllowAdditionalProperties controls whether unknown argument members
// are tolerated when decoding into A.
func WithToolAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.allowAdditionalProperties = allow }
}

// NewTool constructs a writer-based tool with typed input A. The input schema
// is reflected from A. Arguments that do not decode into A produce an error
// result rather than a protocol error.
func NewTool[A any](name string, fn func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) Tool {
	return newTool(name, schema.Reflect[A](), fn, opts...)
}

// TypedTool is like NewTool with a hand-written input schema, for argument
// shapes reflection describes poorly.
func TypedTool[A any](name string, in schema.Schema, fn func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) Tool {
	return newTool(name, in, fn, append([]ToolOption{WithToolAllowAdditionalProperties(true)}, opts...)...)
}

func newTool[A any](name string, in schema.Schema, fn func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) Tool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	handler := func(ctx context.Context, args Arguments) (*mcp.CallToolResult, error) {
		var a A
		decode := args.DecodeStrict
		if cfg.allowAdditionalProperties {
			decode = args.Decode
		}
		if err := decode(&a); err != nil {
			return mcp.ErrorResult("invalid arguments: %v", err), nil
		}
		w := newToolResponseWriter(ctx)
		r := &ToolRequest[A]{name: name, raw: args, args: a}
		if err := fn(ctx, w, r); err != nil {
			return nil, err
		}
		return w.Result(), nil
	}

	return Tool{
		Name:        name,
		Description: cfg.description,
		InputSchema: in,
		Handler:     ToolHandlerFunc(handler),
	}
}
