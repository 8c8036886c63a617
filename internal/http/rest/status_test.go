package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/italolelis/video_downloader/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHandler_Health(t *testing.T) {
	h := NewStatusHandler(NewTracker(nil), nil, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStatusHandler_Status(t *testing.T) {
	tr := NewTracker(nil)
	h := NewStatusHandler(tr, nil, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle","received":0,"total":0,"percent":null}`, rec.Body.String())

	tr.Start("https://example.com/v", "mp4")
	tr.Progress(video.Progress{Received: 3, Total: 4})

	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, StateDownloading, got.State)
	assert.Equal(t, "mp4", got.Format)
	require.NotNil(t, got.Percent)
	assert.InDelta(t, 75.0, *got.Percent, 0.001)
}

func TestStatusHandler_MetricsDisabled(t *testing.T) {
	h := NewStatusHandler(NewTracker(nil), nil, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusHandler_ProgressStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	tr := NewTracker(hub)
	srv := httptest.NewServer(NewStatusHandler(tr, hub, nil).Routes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/progress"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	tr.Start("https://example.com/v", "mp4")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev struct {
		Type string `json:"type"`
		Data Status `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))

	assert.Equal(t, EventState, ev.Type)
	assert.Equal(t, StateDownloading, ev.Data.State)
	assert.Equal(t, "https://example.com/v", ev.Data.URL)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub()

	// nobody runs the hub, so the broadcast buffer fills and the rest is dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(EventProgress, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked")
	}
}
