// Package nemesis meters request flow per client, striking down those who
// exceed their allotted share.
//
// The primary strategy is a fixed window: a counter per (identifier, class)
// that resets at fixed boundaries. Fixed windows admit up to 2N requests
// across a window boundary (N at the tail of one window, N at the head of
// the next). That is an accepted trade-off of the algorithm, not a defect;
// a token-bucket variant is available for callers that want smoothing.
package nemesis

import (
	"context"
	"fmt"
	"time"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// Result is the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole-second hint for the Retry-After header.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// Store is the shared counter table. One logical store serves the whole
// fleet: in-process for a single instance, Redis for many. Incr must be
// atomic per key: it creates or resets the window record as needed, and
// never advances the count past limit.
type Store interface {
	Incr(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Close() error
}

// ClassConfig is the budget for one limit class.
type ClassConfig struct {
	Limit  int
	Window time.Duration
}

// Limiter checks requests against per-class budgets backed by a Store.
type Limiter interface {
	Check(ctx context.Context, key string, class domain.LimitClass) (Result, error)
	Close() error
}

// FixedWindowLimiter is the default Limiter.
type FixedWindowLimiter struct {
	store   Store
	classes map[domain.LimitClass]ClassConfig
}

// DefaultClasses mirrors production budgets: generous general traffic,
// tight budgets on credential endpoints.
func DefaultClasses() map[domain.LimitClass]ClassConfig {
	return map[domain.LimitClass]ClassConfig{
		domain.LimitClassGeneral:  {Limit: 100, Window: 15 * time.Minute},
		domain.LimitClassLogin:    {Limit: 5, Window: 15 * time.Minute},
		domain.LimitClassRegister: {Limit: 3, Window: 15 * time.Minute},
	}
}

// NewFixedWindowLimiter creates a limiter over the given store. Nil classes
// fall back to DefaultClasses.
func NewFixedWindowLimiter(store Store, classes map[domain.LimitClass]ClassConfig) *FixedWindowLimiter {
	if classes == nil {
		classes = DefaultClasses()
	}
	return &FixedWindowLimiter{store: store, classes: classes}
}

// Check draws one request from the class budget for key. On store failure it
// fails open: the request is admitted and the error returned so the caller
// can log it. A broken counter store must not take the site down.
func (l *FixedWindowLimiter) Check(ctx context.Context, key string, class domain.LimitClass) (Result, error) {
	cfg, ok := l.classes[class]
	if !ok {
		return Result{}, fmt.Errorf("unknown limit class %q", class)
	}

	res, err := l.store.Incr(ctx, storeKey(key, class), cfg.Limit, cfg.Window)
	if err != nil {
		return Result{Allowed: true, Remaining: cfg.Limit}, fmt.Errorf("rate limit store: %w", err)
	}
	return res, nil
}

// Close releases store resources.
func (l *FixedWindowLimiter) Close() error {
	return l.store.Close()
}

func storeKey(key string, class domain.LimitClass) string {
	return fmt.Sprintf("%s:%s", class, key)
}

// NoOpLimiter allows all requests.
type NoOpLimiter struct{}

func NewNoOpLimiter() *NoOpLimiter { return &NoOpLimiter{} }

func (NoOpLimiter) Check(ctx context.Context, key string, class domain.LimitClass) (Result, error) {
	return Result{Allowed: true, Remaining: 1}, nil
}

func (NoOpLimiter) Close() error { return nil }
