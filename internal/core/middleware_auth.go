package core

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"seedrelay/internal/types"
)

// RequireAuthToken guards operator-facing routes (metrics, debug) with a
// static bearer token. If no token is configured, all requests pass. The
// comparison is constant-time to avoid timing side channels.
//
// Missing or mismatched credentials both yield 403; there is no challenge to
// issue for a static shared secret, so 401 would be misleading.
func (s *Server) RequireAuthToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.Config.Auth.Token.Unmask()
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		presented := extractBearerToken(authHeader)
		if presented == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid access token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken parses the token out of an Authorization header value.
// Returns "" when the scheme is not Bearer or the token is empty.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// writeAuthError logs the rejection and writes the structured error response.
// The presented credential is never logged.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	s.Logger.Warn("access denied on operator route",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("code", string(code)),
		slog.String("request_id", types.GetRequestID(r.Context())),
		slog.String("client_ip", types.GetClientIP(r.Context())),
	)

	Error(w, r, types.NewAppError(code, message, nil))
}
