package telemetry

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/italolelis/video_downloader/internal/logctx"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags each status-server request with an id: the caller's
// X-Request-ID when present, a fresh uuid otherwise. The id is echoed back
// and carried in the context, where logctx.TraceHandler picks it up.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(logctx.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the id RequestID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	return logctx.RequestIDFromContext(ctx)
}
