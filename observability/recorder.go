package observability

import (
	"context"
	"log/slog"
)

// Recorder receives best-effort span events for each decision round and tool
// call. Implementations must never block meaningfully; a panicking or failing
// recorder must not affect the response, so the loop emits through Emit.
type Recorder interface {
	Event(ctx context.Context, name string, attrs map[string]string)
}

// Emit forwards an event to r, swallowing nil recorders and panics.
func Emit(ctx context.Context, r Recorder, name string, attrs map[string]string) {
	if r == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	r.Event(ctx, name, attrs)
}

// SlogRecorder writes span events to a structured logger. It is the default
// exporter; swap in a real tracing backend behind the same interface.
type SlogRecorder struct {
	logger *slog.Logger
}

func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger.With("component", "trace")}
}

func (r *SlogRecorder) Event(ctx context.Context, name string, attrs map[string]string) {
	args := make([]any, 0, len(attrs)*2)
	for k, v := range attrs {
		args = append(args, k, v)
	}
	r.logger.LogAttrs(ctx, slog.LevelDebug, name, slog.Group("span", args...))
}
