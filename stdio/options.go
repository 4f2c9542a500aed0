package stdio

import (
	"io"
	"log/slog"
	"time"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithIO sets the reader and writer for the handler.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithReader overrides the input stream.
func WithReader(r io.Reader) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
	}
}

// WithWriter overrides the output stream.
func WithWriter(w io.Writer) Option {
	return func(h *Handler) {
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithToolTimeout bounds every tool call. A call that runs longer is answered
// with an internal error. Zero, the default, means no bound.
func WithToolTimeout(d time.Duration) Option {
	return func(h *Handler) { h.toolTimeout = d }
}

// WithUserProvider overrides how the local user is identified in logs.
func WithUserProvider(up UserProvider) Option {
	return func(h *Handler) {
		if up != nil {
			h.userProvider = up
		}
	}
}
