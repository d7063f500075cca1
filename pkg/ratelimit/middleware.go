package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/getmockd/odatad/pkg/httputil"
)

// Middleware refuses requests over the client's budget with 429. A nil
// limiter passes every request through.
func Middleware(l *Limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := l.Allow(l.ClientIP(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", seconds(d.RetryAfter))
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Retry-After", seconds(d.RetryAfter))
		httputil.WriteError(w, http.StatusTooManyRequests, httputil.ErrorDetail{
			Code:    "TooManyRequests",
			Message: "rate limit exceeded",
			Hint:    "Retry after " + seconds(d.RetryAfter) + " seconds.",
		})
	})
}

// seconds rounds up to whole seconds, as Retry-After requires.
func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}
