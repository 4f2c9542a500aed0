package engine

import (
	"context"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

// MessageWriter delivers server-initiated messages (notifications) to the
// client. Transports implement it; responses are returned from HandleMessage
// instead.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg jsonrpc.Message) error
}

// MessageWriterFunc adapts a function to MessageWriter.
type MessageWriterFunc func(ctx context.Context, msg jsonrpc.Message) error

func (f MessageWriterFunc) WriteMessage(ctx context.Context, msg jsonrpc.Message) error {
	return f(ctx, msg)
}
