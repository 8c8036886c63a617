package rest

import (
	"sync"
	"time"

	"github.com/italolelis/video_downloader/internal/video"
)

// State is the lifecycle stage of the tracked download.
type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StateSaving      State = "saving"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Status is the snapshot served on /status and pushed on state changes.
type Status struct {
	State     State      `json:"state"`
	URL       string     `json:"url,omitempty"`
	Format    string     `json:"format,omitempty"`
	Received  int64      `json:"received"`
	Total     int64      `json:"total"`
	Percent   *float64   `json:"percent"`
	Filename  string     `json:"filename,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Publisher receives tracker events. *Hub implements it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Tracker holds the state of the current download for display.
type Tracker struct {
	mu        sync.RWMutex
	status    Status
	publisher Publisher
}

// NewTracker creates an idle tracker. publisher may be nil.
func NewTracker(publisher Publisher) *Tracker {
	return &Tracker{
		status:    Status{State: StateIdle},
		publisher: publisher,
	}
}

// Start resets the tracker for a new download.
func (t *Tracker) Start(sourceURL, format string) {
	t.update(func(s *Status) {
		now := time.Now().UTC()
		*s = Status{
			State:     StateDownloading,
			URL:       sourceURL,
			Format:    format,
			StartedAt: &now,
		}
	}, EventState)
}

// Progress records a progress report. It matches the downloader callback.
func (t *Tracker) Progress(p video.Progress) {
	t.update(func(s *Status) {
		s.Received = p.Received
		s.Total = p.Total
		s.Percent = nil

		if pct, ok := p.Percent(); ok {
			s.Percent = &pct
		}
	}, EventProgress)
}

func (t *Tracker) Saving(filename string) {
	t.update(func(s *Status) {
		s.State = StateSaving
		s.Filename = filename
	}, EventState)
}

func (t *Tracker) Done(path string) {
	t.update(func(s *Status) {
		s.State = StateDone
		s.Filename = path
	}, EventState)
}

// Fail records err's message; the error itself is not retained.
func (t *Tracker) Fail(err error) {
	t.update(func(s *Status) {
		s.State = StateFailed
		if err != nil {
			s.Error = err.Error()
		}
	}, EventState)
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return copyStatus(t.status)
}

func (t *Tracker) update(fn func(*Status), eventType string) {
	t.mu.Lock()
	fn(&t.status)
	snapshot := copyStatus(t.status)
	t.mu.Unlock()

	if t.publisher != nil {
		t.publisher.Publish(eventType, snapshot)
	}
}

func copyStatus(s Status) Status {
	if s.Percent != nil {
		pct := *s.Percent
		s.Percent = &pct
	}

	return s
}
