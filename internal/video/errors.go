package video

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyURL is returned before any request is made when no source URL was given.
	ErrEmptyURL = errors.New("url cannot be empty")

	// ErrDownloadInProgress is returned when a download is requested while another one is running.
	ErrDownloadInProgress = errors.New("a download is already in progress")
)

// RemoteError is a non-2xx answer from the video service. Message is the
// service-supplied error, or a generic one when the body carried none.
type RemoteError struct {
	Operation  string // "fetch_metadata" or "download"
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ProtocolError is a success response whose body could not be understood.
type ProtocolError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed response during %s: %s", e.Operation, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError is a connection or read failure. No partial content survives it.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport error during %s", e.Operation)
	}

	return fmt.Sprintf("transport error during %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EmptyPayloadError is a successful download that delivered zero bytes.
type EmptyPayloadError struct {
	URL    string
	Format string
}

func (e *EmptyPayloadError) Error() string {
	return "downloaded file is empty"
}
