package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedrelay/internal/types"
)

func TestRequestIDMiddlewareGeneratesFreshID(t *testing.T) {
	var seen []string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, types.GetRequestID(r.Context()))
	}))

	// Incoming X-Request-ID headers are never trusted.
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("X-Request-ID", "spoofed-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Len(t, seen, 1)
	assert.NotEmpty(t, seen[0])
	assert.NotEqual(t, "spoofed-id", seen[0])
	assert.Equal(t, seen[0], rec.Header().Get("X-Request-ID"))

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0], seen[1], "every request gets its own id")
}

func TestClientIPMiddleware(t *testing.T) {
	var clientIP, proxyIP string
	h := ClientIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP = types.GetClientIP(r.Context())
		proxyIP = types.GetProxyIP(r.Context())
	}))

	t.Run("direct connection", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:51234"
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "192.0.2.10", clientIP)
		assert.Empty(t, proxyIP)
	})

	t.Run("forwarded connection", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "203.0.113.7", clientIP, "first forwarded hop is the client")
		assert.Equal(t, "10.0.0.1", proxyIP, "socket peer retained as proxy")
	})
}

func TestProbeEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.MountRoutes()

	for _, path := range []string{"/health", "/ready", "/startup"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRecovererConvertsPanicTo500(t *testing.T) {
	srv := newTestServer(t, nil)

	h := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_unexpected_error")
}
