// Package remote talks to the video service: it resolves source URLs into
// metadata and opens rendition payload streams.
package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/italolelis/video_downloader/internal/logctx"
	"github.com/italolelis/video_downloader/internal/video"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	genericMetadataError = "failed to fetch metadata"
	genericDownloadError = "download failed"
	untitled             = "Untitled"

	// maxErrorBody bounds how much of a failure body is read looking for the error field.
	maxErrorBody = 64 * 1024
)

type Client struct {
	BaseURL      string
	MetadataPath string
	DownloadPath string
	httpClient   *http.Client
}

// NewClient creates a client for the service at baseURL. No timeout is set:
// a stalled payload stream stalls the download until the caller's context ends.
func NewClient(baseURL, metadataPath, downloadPath string, insecure ...bool) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if len(insecure) > 0 && insecure[0] {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		MetadataPath: metadataPath,
		DownloadPath: downloadPath,
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(transport)},
	}
}

var (
	_ video.MetadataFetcher = (*Client)(nil)
	_ video.StreamOpener    = (*Client)(nil)
)

type metadataResponse struct {
	Title     string            `json:"title"`
	Duration  *float64          `json:"duration"`
	Thumbnail string            `json:"thumbnail"`
	Formats   *[]formatResponse `json:"formats"`
}

type formatResponse struct {
	Ext      string `json:"ext"`
	Quality  string `json:"quality"`
	FormatID string `json:"format_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// FetchMetadata resolves sourceURL into its title, duration, thumbnail and renditions.
func (c *Client) FetchMetadata(ctx context.Context, sourceURL string) (*video.Metadata, error) {
	const op = "fetch_metadata"

	if sourceURL == "" {
		return nil, video.ErrEmptyURL
	}

	logger := logctx.LoggerFromContext(ctx).With("operation", op)

	form := url.Values{"url": {sourceURL}}

	resp, err := c.postForm(ctx, c.MetadataPath, form)
	if err != nil {
		logger.ErrorContext(ctx, "metadata request failed", "err", err)

		return nil, &video.TransportError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		remoteErr := readRemoteError(resp, op, genericMetadataError)
		logger.WarnContext(ctx, "metadata request rejected", "status", resp.StatusCode, "err", remoteErr)

		return nil, remoteErr
	}

	dec := json.NewDecoder(resp.Body)

	var body metadataResponse
	if err := dec.Decode(&body); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &video.ProtocolError{Operation: op, Reason: "invalid metadata body", Err: err}
		}

		return nil, &video.TransportError{Operation: op, Err: err}
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &video.ProtocolError{Operation: op, Reason: "trailing data after metadata body", Err: err}
	}

	md, err := body.toMetadata()
	if err != nil {
		return nil, &video.ProtocolError{Operation: op, Reason: err.Error()}
	}

	logger.DebugContext(ctx, "fetched metadata", "title", md.Title, "renditions", len(md.Renditions))

	return md, nil
}

func (m metadataResponse) toMetadata() (*video.Metadata, error) {
	if m.Formats == nil {
		return nil, errors.New("missing formats")
	}

	formats := *m.Formats

	md := &video.Metadata{
		Title:      m.Title,
		Thumbnail:  m.Thumbnail,
		Renditions: make([]video.Rendition, 0, len(formats)),
	}

	if md.Title == "" {
		md.Title = untitled
	}

	if m.Duration != nil {
		d := *m.Duration

		switch {
		case math.IsNaN(d) || math.IsInf(d, 0):
			return nil, fmt.Errorf("duration %v is not finite", d)
		case d < 0:
			return nil, fmt.Errorf("negative duration %v", d)
		case d >= math.MaxInt64:
			return nil, fmt.Errorf("duration %v out of range", d)
		}

		md.Duration = int64(d)
	}

	for i, f := range formats {
		if f.Ext == "" {
			return nil, fmt.Errorf("format %d has no ext", i)
		}

		md.Renditions = append(md.Renditions, video.Rendition{
			Extension: f.Ext,
			Quality:   f.Quality,
			FormatID:  f.FormatID,
		})
	}

	return md, nil
}

// OpenStream requests the payload of sourceURL in the given format. On success the
// caller owns the returned body.
func (c *Client) OpenStream(ctx context.Context, sourceURL, format string) (*video.Stream, error) {
	const op = "download"

	if sourceURL == "" {
		return nil, video.ErrEmptyURL
	}

	logger := logctx.LoggerFromContext(ctx).With("operation", op, "format", format)

	form := url.Values{"url": {sourceURL}, "format": {format}}

	resp, err := c.postForm(ctx, c.DownloadPath, form)
	if err != nil {
		logger.ErrorContext(ctx, "download request failed", "err", err)

		return nil, &video.TransportError{Operation: op, Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()

		remoteErr := readRemoteError(resp, op, genericDownloadError)
		logger.WarnContext(ctx, "download request rejected", "status", resp.StatusCode, "err", remoteErr)

		return nil, remoteErr
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	return &video.Stream{
		Body:               resp.Body,
		ContentLength:      total,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.httpClient.Do(req)
}

// readRemoteError builds a RemoteError from the {"error": "..."} body, falling
// back to generic when the body is empty, not JSON or has no error field.
func readRemoteError(resp *http.Response, op, generic string) *video.RemoteError {
	remoteErr := &video.RemoteError{Operation: op, StatusCode: resp.StatusCode, Message: generic}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(b) == 0 {
		return remoteErr
	}

	var body errorResponse
	if err := json.Unmarshal(b, &body); err == nil && body.Error != "" {
		remoteErr.Message = body.Error
	}

	return remoteErr
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
