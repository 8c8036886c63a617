package downloader

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/italolelis/video_downloader/internal/downloader/progress"
	"github.com/italolelis/video_downloader/internal/logctx"
	"github.com/italolelis/video_downloader/internal/telemetry"
	"github.com/italolelis/video_downloader/internal/video"
	"golang.org/x/sync/semaphore"
)

const (
	chunkSize = 32 * 1024

	// maxPrealloc caps how much of an announced Content-Length is reserved up front.
	maxPrealloc = 256 * 1024 * 1024
)

// Downloader streams one rendition at a time into memory.
type Downloader struct {
	streams   video.StreamOpener
	telemetry *telemetry.Telemetry
	slot      *semaphore.Weighted
	logEvery  int64
}

// NewDownloader creates a downloader that opens payloads through streams and
// logs progress every logEvery bytes (and at each 5% of a known size).
func NewDownloader(streams video.StreamOpener, tel *telemetry.Telemetry, logEvery int64) *Downloader {
	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	return &Downloader{
		streams:   streams,
		telemetry: tel,
		slot:      semaphore.NewWeighted(1),
		logEvery:  logEvery,
	}
}

// Download fetches sourceURL in the given format, calling onProgress after every
// chunk, and returns the assembled payload with its resolved filename.
// Only one download runs at a time; a concurrent call fails with
// video.ErrDownloadInProgress.
func (d *Downloader) Download(ctx context.Context, sourceURL, format string, onProgress func(video.Progress)) (*video.Result, error) {
	if !d.slot.TryAcquire(1) {
		return nil, video.ErrDownloadInProgress
	}
	defer d.slot.Release(1)

	ctx = logctx.WithDownloadID(ctx, uuid.NewString())
	logger := logctx.LoggerFromContext(ctx).With("format", format)

	var result *video.Result

	err := d.telemetry.InstrumentDownload(ctx, format, func(ctx context.Context) error {
		var err error

		result, err = d.download(ctx, sourceURL, format, onProgress)

		return err
	})
	if err != nil {
		logger.ErrorContext(ctx, "download failed", "url", sourceURL, "err", err)

		return nil, err
	}

	logger.InfoContext(ctx, "download finished",
		"filename", result.Filename,
		"size", humanize.Bytes(uint64(len(result.Content))),
	)

	return result, nil
}

func (d *Downloader) download(ctx context.Context, sourceURL, format string, onProgress func(video.Progress)) (*video.Result, error) {
	logger := logctx.LoggerFromContext(ctx).With("format", format)
	start := time.Now()

	stream, err := d.streams.OpenStream(ctx, sourceURL, format)
	if err != nil {
		return nil, err
	}
	defer stream.Body.Close()

	if stream.ContentLength > 0 {
		logger.InfoContext(ctx, "downloading", "url", sourceURL, "size", humanize.Bytes(uint64(stream.ContentLength)))
	} else {
		logger.InfoContext(ctx, "downloading", "url", sourceURL, "size", "unknown")
	}

	logProgress := progress.Throttle(d.logEvery, func(p video.Progress) {
		if pct, ok := p.Percent(); ok {
			logger.DebugContext(ctx, "download progress",
				"downloaded", humanize.Bytes(uint64(p.Received)),
				"total", humanize.Bytes(uint64(p.Total)),
				"percent", humanize.FtoaWithDigits(pct, 2))
		} else {
			logger.DebugContext(ctx, "download progress", "downloaded", humanize.Bytes(uint64(p.Received)))
		}
	})

	var received int64

	pr := progress.NewReader(stream.Body, stream.ContentLength, func(p video.Progress) {
		d.telemetry.AddDownloadedBytes(format, p.Received-received)
		received = p.Received

		logProgress(p)

		if onProgress != nil {
			onProgress(p)
		}
	})

	content, err := assemble(pr, stream.ContentLength)
	if err != nil {
		return nil, &video.TransportError{Operation: "download", Err: err}
	}

	if len(content) == 0 {
		return nil, &video.EmptyPayloadError{URL: sourceURL, Format: format}
	}

	filename := ResolveFilename(stream.ContentDisposition, format)

	elapsed := time.Since(start)
	final := pr.Progress()
	logger.DebugContext(ctx, "payload assembled",
		"filename", filename,
		"received", humanize.Bytes(uint64(final.Received)),
		"elapsed", elapsed.String(),
		"rate", humanize.Bytes(uint64(float64(final.Received)/max(elapsed.Seconds(), 0.001)))+"/s",
	)

	return &video.Result{Filename: filename, Content: content}, nil
}

// assemble concatenates every chunk of r, in order, into one buffer.
func assemble(r io.Reader, total int64) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(min(total, maxPrealloc)))
	}

	chunk := make([]byte, chunkSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}

		if err == io.EOF {
			return buf.Bytes(), nil
		}

		if err != nil {
			return nil, err
		}
	}
}
