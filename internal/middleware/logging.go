// Package middleware holds the request-logging middleware for the
// nutrilog API.
//
// The standard chi stack (RequestID, RealIP, Recoverer) comes from the
// chi middleware package; this one is ours because the logging policy is
// application-specific: clients poll GET /api/drafts/{id} on a
// sub-second interval while a draft is generating, and logging every
// successful poll at Info would bury everything else.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture the status code
// and body size, which net/http does not expose after the fact.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger returns a middleware that logs one structured line per request:
// method, path, status, duration, response bytes, and the request id
// assigned by chi's RequestID middleware (so a handler's own log lines
// can be correlated with the request they served).
//
// Successful draft polls are logged at Debug; everything else at Info.
// Errors are never demoted — a failing poll is exactly the line you want
// to see.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // unless WriteHeader says otherwise
			}

			next.ServeHTTP(wrapped, r)

			level := slog.LevelInfo
			if isDraftPoll(r) && wrapped.statusCode < 400 {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// isDraftPoll matches GET /api/drafts/{id} (but not the list, and not
// the save/component sub-resources) — the one endpoint clients hit on a
// timer.
func isDraftPoll(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	rest, ok := strings.CutPrefix(r.URL.Path, "/api/drafts/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}
