package mcpservice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// ToolResponseWriter allows a tool handler to incrementally compose a
// CallToolResult while optionally emitting progress notifications.
//
// Notes:
// - It is safe for concurrent use within a single call.
// - Writes after finalization (Result) return ErrFinalized.
// - Appends check ctx.Done() and return the context error promptly.
// - SendProgress delegates to the ambient ProgressReporter when present; it is a no-op otherwise.
type ToolResponseWriter interface {
	AppendText(text string) error
	AppendTextf(format string, args ...any) error
	// AppendImage appends base64 encoded image data.
	AppendImage(data, mimeType string) error
	AppendContent(items ...mcp.Content) error
	SetError(isError bool)
	SetMeta(key string, v any)
	SendProgress(progress, total float64) error
	// Result finalizes and returns the accumulated result. It is idempotent.
	Result() *mcp.CallToolResult
}

var (
	// ErrFinalized is returned when attempting to write after Result() was called.
	ErrFinalized = errors.New("result already finalized")
)

type toolResponseWriter struct {
	ctx       context.Context
	mu        sync.Mutex
	finalized bool

	items   []mcp.Content
	isError bool
	meta    map[string]any
}

var _ ToolResponseWriter = (*toolResponseWriter)(nil)

// NewToolResponseWriter returns a writer bound to ctx. Tools built with
// NewTool receive one automatically.
func NewToolResponseWriter(ctx context.Context) ToolResponseWriter {
	return newToolResponseWriter(ctx)
}

func newToolResponseWriter(ctx context.Context) *toolResponseWriter {
	return &toolResponseWriter{ctx: ctx}
}

func (w *toolResponseWriter) AppendText(text string) error {
	return w.AppendContent(mcp.TextContent{Text: text})
}

func (w *toolResponseWriter) AppendTextf(format string, args ...any) error {
	return w.AppendText(fmt.Sprintf(format, args...))
}

func (w *toolResponseWriter) AppendImage(data, mimeType string) error {
	img := mcp.ImageContent{Data: data, MIMEType: mimeType}
	if err := img.Validate(); err != nil {
		return err
	}
	return w.AppendContent(img)
}

func (w *toolResponseWriter) AppendContent(items ...mcp.Content) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return ErrFinalized
	}
	for _, it := range items {
		if it != nil {
			w.items = append(w.items, it)
		}
	}
	return nil
}

func (w *toolResponseWriter) SetError(isError bool) {
	w.mu.Lock()
	w.isError = isError
	w.mu.Unlock()
}

func (w *toolResponseWriter) SetMeta(key string, v any) {
	if key == "" {
		return
	}
	w.mu.Lock()
	if w.meta == nil {
		w.meta = make(map[string]any)
	}
	w.meta[key] = v
	w.mu.Unlock()
}

func (w *toolResponseWriter) SendProgress(progress, total float64) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if pr, ok := ProgressFrom(w.ctx); ok {
		return pr.Report(w.ctx, progress, total)
	}
	return nil
}

func (w *toolResponseWriter) Result() *mcp.CallToolResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finalized = true
	// Copies keep later mutation of the returned result away from the writer.
	return &mcp.CallToolResult{
		Content:      append([]mcp.Content{}, w.items...),
		IsError:      w.isError,
		BaseMetadata: mcp.BaseMetadata{Meta: cloneMeta(w.meta)},
	}
}

func cloneMeta(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
