package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs every handshake attempt, before authentication runs.
// The only route on this server is the websocket upgrade, so the origin
// header is worth keeping in the log line.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			var ip string
			if ok {
				ip = reqMeta.IP
			}

			logger.Info("Incoming handshake request",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
				slog.String("origin", r.Header.Get("Origin")),
			)
			next.ServeHTTP(w, r)
		})
	}
}
