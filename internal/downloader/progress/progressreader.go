package progress

import (
	"io"

	"github.com/italolelis/video_downloader/internal/video"
)

// Reader wraps an io.Reader and reports the running byte count after every
// non-empty read, in order. The callback runs on the reading goroutine.
type Reader struct {
	Reader     io.Reader
	OnProgress func(video.Progress)
	progress   video.Progress
}

func NewReader(r io.Reader, total int64, cb func(video.Progress)) *Reader {
	if total < 0 {
		total = 0
	}

	return &Reader{
		Reader:     r,
		OnProgress: cb,
		progress:   video.Progress{Total: total},
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.progress.Received += int64(n)
		if pr.OnProgress != nil {
			pr.OnProgress(pr.progress)
		}
	}
	return n, err
}

// Progress returns the count so far.
func (pr *Reader) Progress() video.Progress {
	return pr.progress
}

// Throttle returns a callback that forwards to cb at most once per interval
// bytes, whenever another 5% of a known total is crossed, and always for the
// update that completes a known total.
func Throttle(interval int64, cb func(video.Progress)) func(video.Progress) {
	var lastReported int64

	return func(p video.Progress) {
		sinceLast := p.Received - lastReported
		crossedStep := p.Total > 0 && p.Received*20/p.Total > lastReported*20/p.Total
		done := p.Total > 0 && p.Received >= p.Total

		if (interval > 0 && sinceLast >= interval) || crossedStep || done {
			lastReported = p.Received
			cb(p)
		}
	}
}
