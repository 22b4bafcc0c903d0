package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	"github.com/neverbe/pos-api/internal/common"
)

// Middleware applies the sliding window limiter per authenticated cashier,
// falling back to the client IP for unauthenticated routes.
func Middleware(limiter *SlidingWindow) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limiter.R == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := clientKey(r)
			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// fail open on limiter errors
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryIn.Seconds())))
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if cashier, ok := common.CashierID(r.Context()); ok && cashier != "" {
		return "cashier:" + cashier
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
