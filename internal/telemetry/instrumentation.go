package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span and metric attributes must stay low-cardinality: operation names,
// statuses, client types and rendition formats are fine. Source URLs,
// filenames and error messages belong in logs and span status only.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

func (t *Telemetry) enabled() bool {
	return t != nil && t.tracer != nil
}

// InstrumentOperation instruments a generic operation with a span.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if !t.enabled() {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentClientOperation instruments video service client operations.
func (t *Telemetry) InstrumentClientOperation(ctx context.Context, client, operation string, fn InstrumentedFunc) error {
	if !t.enabled() {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "client_"+operation, "video_client", func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "client_"+operation)
		defer span.End()

		span.SetAttributes(
			attribute.String("client.type", client),
			attribute.String("client.operation", operation),
		)

		return fn(ctx)
	})

	t.RecordClientOperation(client, operation, statusOf(err))

	return err
}

// InstrumentDownload instruments one streaming download of the given format.
func (t *Telemetry) InstrumentDownload(ctx context.Context, format string, fn InstrumentedFunc) error {
	if !t.enabled() {
		return fn(ctx)
	}

	start := time.Now()

	t.IncrementActiveDownloads()
	defer t.DecrementActiveDownloads()

	err := t.InstrumentOperation(ctx, "download", "downloader", func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "download_stream")
		defer span.End()

		span.SetAttributes(attribute.String("download.format", format))

		return fn(ctx)
	})

	t.RecordDownload(format, statusOf(err), time.Since(start))

	return err
}

// InstrumentSave instruments the save action for a completed download.
func (t *Telemetry) InstrumentSave(ctx context.Context, fn InstrumentedFunc) error {
	if !t.enabled() {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "save_file", "saver", fn)

	t.RecordSavedFile(statusOf(err))

	return err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
