package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mentorhub/chat-relay/pkg/auth"
)

// NewHandshakeAuth gates the websocket upgrade. The bearer token travels in a
// handshake side channel: the Authorization header, or the `token` query
// parameter for browser clients that cannot set headers on websocket dials.
// A rejected handshake is terminal for that attempt; no registry entry is
// ever created for it.
func NewHandshakeAuth(logger *slog.Logger, verifier *auth.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			identity, err := verifier.Verify(bearerToken(r))
			if err != nil {
				var authErr *auth.AuthError
				reason := "unknown"
				if errors.As(err, &authErr) {
					reason = authErr.Reason
				}
				logger.Warn("Handshake rejected",
					slog.String("ip", reqMeta.IP),
					slog.String("reason", reason),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = identity.UserID
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
