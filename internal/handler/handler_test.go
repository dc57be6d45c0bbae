package handler

import (
	"context"
	"testing"

	"github.com/nmalakhov/shortly/internal/ratelimit"
	"github.com/nmalakhov/shortly/internal/service"
	"go.uber.org/zap"
)

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	pingErr  error
}

func (l *stubLimiter) Allow(ctx context.Context, operation, callerID string) (ratelimit.Decision, error) {
	return l.decision, l.err
}

func (l *stubLimiter) Ping(ctx context.Context) error {
	return l.pingErr
}

func allowAll() *stubLimiter {
	return &stubLimiter{decision: ratelimit.Decision{Allowed: true}}
}

func newTestHandler(t *testing.T, limiter Limiter) (*Handler, *service.ShortenerService) {
	t.Helper()

	logger := zap.NewNop()
	svc := service.NewShortenerService("", false, logger)

	if limiter == nil {
		limiter = allowAll()
	}

	return NewHandler(svc, limiter, logger), svc
}
