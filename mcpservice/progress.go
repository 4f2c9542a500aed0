package mcpservice

import "context"

// ProgressReporter reports progress of a long-running tool call. The engine
// places one in the handler's context when the client asked for progress by
// sending a progress token; the reporter emits notifications/progress
// correlated with that token.
type ProgressReporter interface {
	// Report emits a progress update. total may be zero when unknown.
	Report(ctx context.Context, progress, total float64) error
}

// ProgressReporterFunc adapts a function to ProgressReporter.
type ProgressReporterFunc func(ctx context.Context, progress, total float64) error

func (f ProgressReporterFunc) Report(ctx context.Context, progress, total float64) error {
	return f(ctx, progress, total)
}

type progressKey struct{}

// WithProgressReporter returns a new context carrying the provided reporter.
func WithProgressReporter(ctx context.Context, pr ProgressReporter) context.Context {
	if pr == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, pr)
}

// ProgressFrom retrieves a ProgressReporter from the context if present.
func ProgressFrom(ctx context.Context) (ProgressReporter, bool) {
	if v := ctx.Value(progressKey{}); v != nil {
		if pr, ok := v.(ProgressReporter); ok && pr != nil {
			return pr, true
		}
	}
	return nil, false
}
