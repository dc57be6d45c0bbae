package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/nmalakhov/shortly/internal/models"
	"github.com/nmalakhov/shortly/internal/ratelimit"
	"go.uber.org/zap"
)

// Admitter decides whether one more request from a caller is allowed.
type Admitter interface {
	Allow(ctx context.Context, operation, callerID string) (ratelimit.Decision, error)
}

// RateLimit gates a route through the admission controller, keyed by the
// caller's network address. When the counter store is unreachable the request
// is let through (fail open): losing abuse protection for a while is cheaper
// than refusing every write. Denied callers get 429 with retry_after seconds.
func RateLimit(limiter Admitter, operation string, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			callerID := clientAddr(r)

			decision, err := limiter.Allow(r.Context(), operation, callerID)
			if err != nil {
				logger.Error("Admission check failed, allowing request",
					zap.String("caller", callerID),
					zap.String("operation", operation),
					zap.Error(err))
				next.ServeHTTP(rw, r)
				return
			}

			if !decision.Allowed {
				retryAfter := int64(decision.RetryAfter.Seconds())
				logger.Warn("Rate limit exceeded",
					zap.String("caller", callerID),
					zap.String("operation", operation),
					zap.Int64("retry_after", retryAfter))

				rw.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				rw.Header().Set("Content-Type", "application/json")
				rw.WriteHeader(http.StatusTooManyRequests)

				encoder := json.NewEncoder(rw)
				if err := encoder.Encode(models.ErrorResponse{
					Error:      "too many requests",
					RetryAfter: retryAfter,
				}); err != nil {
					logger.Error("Failed to encode rate limit response", zap.Error(err))
				}
				return
			}

			next.ServeHTTP(rw, r)
		})
	}
}

// clientAddr strips the port chi's RealIP middleware leaves in RemoteAddr.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
