package core

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"seedrelay/internal/types"
)

// intervalLimiter enforces a minimum interval between accepted requests.
// The state is a single lastAcceptedAt timestamp shared across all inbound
// requests regardless of route or origin; a burst from any one source can
// throttle all others. This is a documented design simplification, not a
// security control.
type intervalLimiter struct {
	mu             sync.Mutex
	interval       time.Duration
	lastAcceptedAt time.Time
	now            func() time.Time // injected for tests
}

func newIntervalLimiter(interval time.Duration) *intervalLimiter {
	return &intervalLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// allow reports whether the request may proceed, atomically advancing the
// shared timestamp when it does.
func (l *intervalLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.lastAcceptedAt.IsZero() && now.Sub(l.lastAcceptedAt) < l.interval {
		return false
	}
	l.lastAcceptedAt = now
	return true
}

// RateLimit enforces the global inter-request interval. Rejected requests
// receive a 429 before any body parsing or handler accounting, so they never
// reach the request counters. A non-positive configured interval disables the
// limiter entirely.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter.interval <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		if !s.limiter.allow() {
			s.Logger.Warn("rate limit exceeded",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", types.GetRequestID(r.Context())),
				slog.String("client_ip", types.GetClientIP(r.Context())),
			)

			retryAfter := int(s.limiter.interval.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			Error(w, r, types.NewAppError(
				types.ErrCodeRateLimit,
				"requests are arriving too quickly, retry shortly",
				nil,
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}
