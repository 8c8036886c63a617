package video

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MetadataFetcher resolves a source URL into its descriptive metadata.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (*Metadata, error)
}

// StreamOpener requests the payload of one rendition and hands back the open body.
type StreamOpener interface {
	OpenStream(ctx context.Context, url string, format string) (*Stream, error)
}

// Metadata describes a remote video and the renditions it can be downloaded in.
type Metadata struct {
	Title      string
	Duration   int64 // seconds
	Thumbnail  string
	Renditions []Rendition
}

// Rendition is one downloadable variant of a video.
type Rendition struct {
	Extension string
	Quality   string
	FormatID  string
}

// Label renders the rendition the way it is offered for selection, e.g. "MP4 - 720p".
func (r Rendition) Label() string {
	return strings.ToUpper(r.Extension) + " - " + r.Quality
}

// Offers reports whether ext is one of the renditions of m.
func (m *Metadata) Offers(ext string) bool {
	for _, r := range m.Renditions {
		if r.Extension == ext {
			return true
		}
	}

	return false
}

// Stream is an open payload response. The caller owns Body and must close it.
type Stream struct {
	Body               io.ReadCloser
	ContentLength      int64 // 0 when unknown
	ContentDisposition string
}

// Progress is the running byte count of one download.
type Progress struct {
	Received int64
	Total    int64 // 0 when unknown
}

// Fraction returns Received/Total. ok is false while the total is unknown.
func (p Progress) Fraction() (fraction float64, ok bool) {
	if p.Total <= 0 {
		return 0, false
	}

	return float64(p.Received) / float64(p.Total), true
}

// Percent returns the completion percentage, or false when the total is unknown.
func (p Progress) Percent() (float64, bool) {
	f, ok := p.Fraction()

	return f * 100, ok
}

// Result is the fully assembled payload of a successful download.
type Result struct {
	Filename string
	Content  []byte
}

// FormatDuration renders seconds as M:SS. Minutes are not folded into hours.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// BaseFilename reduces a server-supplied filename to a plain name with no
// directory part, control characters or leading dots. It returns "" when
// nothing usable remains.
func BaseFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))

	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}

		return r
	}, name)

	name = strings.TrimLeft(name, ".")
	if name == "/" {
		return ""
	}

	return name
}
