package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/engine"
	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
)

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
//
// The handler is transport-only; it delegates all MCP semantics to the
// engine serving the provided mcpservice.Server.
type Handler struct {
	srv *mcpservice.Server
	r   io.Reader
	w   io.Writer
	l   *slog.Logger

	userProvider UserProvider
	toolTimeout  time.Duration

	out    *writeMux
	served atomic.Bool
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv *mcpservice.Server, opts ...Option) *Handler {
	h := &Handler{
		srv:          srv,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.out = &writeMux{bw: bufio.NewWriter(h.w)}
	return h
}

// Serve is shorthand for NewHandler(srv, opts...).Serve(ctx).
func Serve(ctx context.Context, srv *mcpservice.Server, opts ...Option) error {
	return NewHandler(srv, opts...).Serve(ctx)
}

// Serve runs the stdio event loop until EOF on the reader or the context is canceled.
// It may be called at most once per Handler. Messages are handled strictly
// one at a time: the next line is not read until the response to the
// previous one has been written.
//
// Serve returns nil on a clean EOF, ctx.Err() when the context ends, and an
// error wrapping mcpservice.ErrIO when reading or writing fails. Serving
// freezes the server's identity and tools.
func (h *Handler) Serve(ctx context.Context) error {
	if !h.served.CompareAndSwap(false, true) {
		return errors.New("stdio: Serve called more than once")
	}
	h.srv.Freeze()

	eng := engine.NewEngine(h.srv,
		engine.WithLogger(h.l),
		engine.WithMessageWriter(h.out),
		engine.WithToolTimeout(h.toolTimeout),
	)

	info := h.srv.Info()
	attrs := []any{
		slog.String("server", info.Name),
		slog.String("version", info.Version),
		slog.Int("tool_count", h.srv.Tools().Len()),
	}
	if uid, err := h.userProvider.CurrentUserID(); err == nil {
		attrs = append(attrs, slog.String("user", uid))
	}
	h.l.InfoContext(ctx, "stdio.serve.start", attrs...)

	lr := h.startReader()
	defer lr.stop()

	for {
		select {
		case <-ctx.Done():
			h.l.InfoContext(ctx, "stdio.serve.cancelled")
			return ctx.Err()
		case rr := <-lr.lines:
			if rr.err != nil {
				if errors.Is(rr.err, io.EOF) {
					h.l.InfoContext(ctx, "stdio.read.eof")
					return nil
				}
				h.l.ErrorContext(ctx, "stdio.read.fail", slog.String("err", rr.err.Error()))
				return fmt.Errorf("%w: read: %v", mcpservice.ErrIO, rr.err)
			}
			if len(bytes.TrimSpace(rr.line)) > 0 {
				if resp := eng.HandleMessage(ctx, rr.line); resp != nil {
					if err := h.out.writeJSONRPC(resp); err != nil {
						h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
						return err
					}
				}
			}
		}
		lr.next()
	}
}

// Notify sends a server-initiated notification to the client. It is safe to
// call concurrently with Serve.
func (h *Handler) Notify(ctx context.Context, method string, params any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	return h.out.writeJSONRPC(n)
}

type readResult struct {
	line []byte
	err  error
}

// lineReader reads lines on a separate goroutine so that Serve can observe
// context cancellation while blocked on input. A line is only read after the
// previous one was handled. A read still blocked when Serve returns is
// abandoned.
type lineReader struct {
	lines chan readResult
	want  chan struct{}
	done  chan struct{}
}

func (h *Handler) startReader() *lineReader {
	lr := &lineReader{
		lines: make(chan readResult),
		want:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	lr.want <- struct{}{}
	br := bufio.NewReader(h.r)

	go func() {
		for {
			select {
			case <-lr.want:
			case <-lr.done:
				return
			}
			line, err := ReadMessage(br)
			select {
			case lr.lines <- readResult{line: line, err: err}:
			case <-lr.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return lr
}

// next asks for the line after the one just received.
func (lr *lineReader) next() { lr.want <- struct{}{} }

func (lr *lineReader) stop() { close(lr.done) }

// writeMux serializes writes of whole messages to the output stream.
type writeMux struct {
	mu sync.Mutex
	bw *bufio.Writer
}

func (m *writeMux) writeJSONRPC(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return m.write(b)
}

func (m *writeMux) write(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := WriteMessage(m.bw, b); err != nil {
		return fmt.Errorf("%w: write: %v", mcpservice.ErrIO, err)
	}
	return nil
}

// WriteMessage implements engine.MessageWriter.
func (m *writeMux) WriteMessage(ctx context.Context, msg jsonrpc.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.write(msg)
}
