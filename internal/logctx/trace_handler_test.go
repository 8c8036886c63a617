package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewTraceHandler(slog.NewJSONHandler(buf, &slog.HandlerOptions{})))
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output must be JSON: %s", buf.String())

	return entry
}

func TestTraceHandler_PlainContext(t *testing.T) {
	var buf bytes.Buffer

	newTestLogger(&buf).InfoContext(context.Background(), "fetching metadata", "url", "https://youtu.be/x")

	entry := decodeEntry(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
	assert.NotContains(t, entry, "download_id")
	assert.Equal(t, "fetching metadata", entry["msg"])
	assert.Equal(t, "https://youtu.be/x", entry["url"])
}

func TestTraceHandler_ValidSpan(t *testing.T) {
	var buf bytes.Buffer

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	newTestLogger(&buf).InfoContext(ctx, "download progress")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestTraceHandler_DownloadID(t *testing.T) {
	var buf bytes.Buffer

	ctx := WithDownloadID(context.Background(), "dl-42")
	newTestLogger(&buf).With("format", "mp4").InfoContext(ctx, "download finished")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "dl-42", entry["download_id"])
	assert.Equal(t, "mp4", entry["format"])
}

func TestTraceHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer

	ctx := WithRequestID(WithDownloadID(context.Background(), "dl-7"), "req-9")
	newTestLogger(&buf).InfoContext(ctx, "http request completed")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "dl-7", entry["download_id"])
	assert.Equal(t, "req-9", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestTraceHandler_Enabled(t *testing.T) {
	h := NewTraceHandler(slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
}

func TestTraceHandler_WithGroupKeepsWrapper(t *testing.T) {
	var buf bytes.Buffer

	h := NewTraceHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{})).WithGroup("stream")
	_, ok := h.(*TraceHandler)
	require.True(t, ok, "WithGroup should return *TraceHandler, got %T", h)

	slog.New(h).InfoContext(WithDownloadID(context.Background(), "dl-1"), "chunk", "bytes", 10)
	assert.Contains(t, buf.String(), `"stream":{`)
}

func TestNewTraceHandler_NilPanics(t *testing.T) {
	assert.Panics(t, func() { NewTraceHandler(nil) })
}

func TestLoggerFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), LoggerFromContext(context.Background()))

	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, l, LoggerFromContext(WithLogger(context.Background(), l)))
}
