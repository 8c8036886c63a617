package logctx

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// correlationIDs are the context values copied onto every record, in order.
var correlationIDs = []struct {
	key  string
	from func(context.Context) string
}{
	{"download_id", DownloadIDFromContext},
	{"request_id", RequestIDFromContext},
}

// TraceHandler wraps an slog.Handler and stamps each record with the ids that
// correlate it: trace_id and span_id of the active span, the download_id of
// the download in progress and the request_id of the status request.
type TraceHandler struct {
	inner slog.Handler
}

// NewTraceHandler wraps h. It panics when h is nil.
func NewTraceHandler(h slog.Handler) *TraceHandler {
	if h == nil {
		panic("logctx: NewTraceHandler called with nil handler")
	}
	return &TraceHandler{inner: h}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(correlationAttrs(ctx)...)

	return h.inner.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{inner: h.inner.WithGroup(name)}
}

func correlationAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	for _, c := range correlationIDs {
		if id := c.from(ctx); id != "" {
			attrs = append(attrs, slog.String(c.key, id))
		}
	}

	return attrs
}
