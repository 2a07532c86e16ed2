package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggerMiddleware attaches a request-scoped logger to the context and writes one
// line per request once the handler returns. Middleware further down can add
// fields to it, the auth middleware adds the caller's identity.
func LoggerMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := log.With().Str("request_id", uuid.NewString()).Logger()
			ctx := reqLog.WithContext(r.Context())

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r.WithContext(ctx))

			l := zerolog.Ctx(ctx)
			var event *zerolog.Event
			switch {
			case rw.statusCode >= 500:
				event = l.Error()
			case rw.statusCode >= 400:
				event = l.Warn()
			default:
				event = l.Info()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
