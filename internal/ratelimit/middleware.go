package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"branchrate/pkg/platform/httputil"
	"branchrate/pkg/requestcontext"
)

// ExceededResponse is written with 429 when a client runs out of requests.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware throttles requests per client IP.
type Middleware struct {
	window *SlidingWindow
	logger *slog.Logger
}

// New returns a Middleware allowing perMinute requests per client IP. A
// non-positive perMinute disables throttling.
func New(perMinute int, logger *slog.Logger) *Middleware {
	m := &Middleware{logger: logger}
	if perMinute > 0 {
		m.window = NewSlidingWindow(perMinute, time.Minute)
	} else if logger != nil {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit wraps next with the per-IP window.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.window == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		if ip == "" {
			ip = r.RemoteAddr
		}

		result := m.window.Allow(ip)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retry := result.RetryAfter(m.window.now())
			if m.logger != nil {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"client_ip", ip,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.WriteJSON(w, http.StatusTooManyRequests, ExceededResponse{
				Error:      "rate_limit_exceeded",
				Message:    "Too many requests from this IP address. Please try again later.",
				RetryAfter: retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
