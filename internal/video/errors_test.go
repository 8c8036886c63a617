package video

import (
	"errors"
	"fmt"
	"testing"
)

// TestRemoteError_Error verifies the service message is surfaced verbatim
func TestRemoteError_Error(t *testing.T) {
	err := &RemoteError{Operation: "fetch_metadata", StatusCode: 400, Message: "invalid url"}

	if err.Error() != "invalid url" {
		t.Errorf("Error() = %q, want %q", err.Error(), "invalid url")
	}
}

func TestProtocolError_Error(t *testing.T) {
	err := &ProtocolError{Operation: "fetch_metadata", Reason: "invalid json"}

	expected := "malformed response during fetch_metadata: invalid json"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want string
	}{
		{
			name: "with cause",
			err:  &TransportError{Operation: "download", Err: errors.New("connection reset")},
			want: "transport error during download: connection reset",
		},
		{
			name: "without cause",
			err:  &TransportError{Operation: "download"},
			want: "transport error during download",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestTransportError_Unwrap verifies error chain traversal
func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &TransportError{Operation: "download", Err: cause}

	wrapped := fmt.Errorf("context: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find cause in wrapped chain")
	}

	var target *TransportError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract TransportError from wrapped chain")
	}

	if target.Operation != "download" {
		t.Errorf("Operation = %q, want %q", target.Operation, "download")
	}
}

func TestEmptyPayloadError_As(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", &EmptyPayloadError{URL: "https://youtu.be/x", Format: "mp4"})

	var target *EmptyPayloadError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract EmptyPayloadError from wrapped chain")
	}

	if target.Format != "mp4" {
		t.Errorf("Format = %q, want %q", target.Format, "mp4")
	}
}
