package video

import (
	"context"

	"github.com/italolelis/video_downloader/internal/telemetry"
)

// Client is what the CLI needs from the video service.
type Client interface {
	MetadataFetcher
	StreamOpener
}

// InstrumentedClient wraps a Client with telemetry.
type InstrumentedClient struct {
	client     Client
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedClient creates a new instrumented video service client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry, clientType string) *InstrumentedClient {
	return &InstrumentedClient{
		client:     client,
		telemetry:  tel,
		clientType: clientType,
	}
}

// FetchMetadata fetches video metadata with telemetry.
func (c *InstrumentedClient) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	var result *Metadata

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "fetch_metadata", func(ctx context.Context) error {
		result, err = c.client.FetchMetadata(ctx, url)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// OpenStream opens a rendition payload with telemetry. Only the request is
// measured; consuming the body is accounted for by the downloader.
func (c *InstrumentedClient) OpenStream(ctx context.Context, url string, format string) (*Stream, error) {
	var result *Stream

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "open_stream", func(ctx context.Context) error {
		result, err = c.client.OpenStream(ctx, url, format)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
