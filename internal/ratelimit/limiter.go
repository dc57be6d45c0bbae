// Package ratelimit implements a sliding-window admission check backed by a
// shared Redis instance. The prune/count/admit cycle runs as a single Lua
// script, so concurrent callers on any number of workers observe a consistent
// count for the same key.
package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed sliding_window.lua
var slidingWindowScript string

const keyPrefix = "rate_limit:"

// Decision is the outcome of a single admission check. RetryAfter is zero
// when the request is allowed; when denied it is the time until the oldest
// entry leaves the window.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter makes allow/deny decisions against Redis. A store error is returned
// as an error, never as a denial: the caller owns the fail-open/fail-closed
// policy.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration

	mu        sync.Mutex
	scriptSHA string
}

func New(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow decides whether one more request from callerID for operation fits in
// the trailing window. The decision is a single EVALSHA round trip; if Redis
// lost the script (NOSCRIPT after a restart), it is re-registered and the
// decision retried exactly once.
//
// Window timestamps come from this process's clock, not from Redis TIME, so
// instances sharing a key must keep their clocks in sync for the window to be
// exact.
func (l *Limiter) Allow(ctx context.Context, operation, callerID string) (Decision, error) {
	sha, err := l.script(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("register admission script: %w", err)
	}

	key := keyPrefix + operation + ":" + callerID
	now := time.Now().Unix()
	windowSec := int64(l.window.Seconds())

	result, err := l.client.EvalSha(ctx, sha, []string{key}, now, windowSec, l.limit).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		sha, err = l.reload(ctx)
		if err != nil {
			return Decision{}, fmt.Errorf("re-register admission script: %w", err)
		}
		result, err = l.client.EvalSha(ctx, sha, []string{key}, now, windowSec, l.limit).Result()
	}
	if err != nil {
		return Decision{}, fmt.Errorf("admission check: %w", err)
	}

	return parseDecision(result)
}

func (l *Limiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// script returns the registered script digest, loading it on first use.
// Registration is serialized by the mutex, so concurrent first callers load
// the script at most once per process.
func (l *Limiter) script(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scriptSHA != "" {
		return l.scriptSHA, nil
	}

	sha, err := l.client.ScriptLoad(ctx, slidingWindowScript).Result()
	if err != nil {
		return "", err
	}

	l.scriptSHA = sha
	return sha, nil
}

func (l *Limiter) reload(ctx context.Context) (string, error) {
	l.mu.Lock()
	l.scriptSHA = ""
	l.mu.Unlock()

	return l.script(ctx)
}

func parseDecision(result any) (Decision, error) {
	values, ok := result.([]any)
	if !ok || len(values) != 2 {
		return Decision{}, errors.New("unexpected admission script reply")
	}

	allowed, ok := values[0].(int64)
	if !ok {
		return Decision{}, errors.New("unexpected admission script reply")
	}
	retryAfter, ok := values[1].(int64)
	if !ok {
		return Decision{}, errors.New("unexpected admission script reply")
	}

	return Decision{
		Allowed:    allowed == 1,
		RetryAfter: time.Duration(retryAfter) * time.Second,
	}, nil
}
