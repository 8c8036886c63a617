package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/italolelis/video_downloader/internal/logctx"
	"github.com/italolelis/video_downloader/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusHandler serves the local status endpoints for a running download.
type StatusHandler struct {
	tracker   *Tracker
	hub       *Hub
	telemetry *telemetry.Telemetry
}

// NewStatusHandler creates a new status handler. tel may be nil.
func NewStatusHandler(tracker *Tracker, hub *Hub, tel *telemetry.Telemetry) *StatusHandler {
	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	return &StatusHandler{
		tracker:   tracker,
		hub:       hub,
		telemetry: tel,
	}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(h.telemetry).Middleware)

	r.Get("/healthz", h.HandleHealth)
	r.Get("/status", h.HandleStatus)
	r.Method(http.MethodGet, "/metrics", h.telemetry.Handler())

	if h.hub != nil {
		r.Get("/progress", h.hub.ServeWS)
	}

	return otelhttp.NewHandler(r, "status-server")
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStatus returns the snapshot of the current download.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.tracker.Snapshot())
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}
