package nemesis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// TokenBucketLimiter is the smoothing alternative to the fixed window: each
// class budget is converted to a steady refill rate with the window limit as
// burst, so a boundary can never see 2N requests. Remaining and ResetAt are
// approximations derived from the bucket state.
type TokenBucketLimiter struct {
	classes map[domain.LimitClass]ClassConfig

	mu       sync.RWMutex
	limiters map[string]*bucketEntry

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupDone     chan struct{}
}

type bucketEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewTokenBucketLimiter creates the smoothing limiter and starts its
// idle-entry cleanup goroutine.
func NewTokenBucketLimiter(classes map[domain.LimitClass]ClassConfig) *TokenBucketLimiter {
	if classes == nil {
		classes = DefaultClasses()
	}
	l := &TokenBucketLimiter{
		classes:         classes,
		limiters:        make(map[string]*bucketEntry),
		cleanupInterval: 5 * time.Minute,
		cleanupStop:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Check admits the request if the key's bucket has a token.
func (l *TokenBucketLimiter) Check(ctx context.Context, key string, class domain.LimitClass) (Result, error) {
	cfg, ok := l.classes[class]
	if !ok {
		return Result{}, fmt.Errorf("unknown limit class %q", class)
	}

	lim := l.getLimiter(storeKey(key, class), cfg)
	now := time.Now()
	allowed := lim.Allow()

	remaining := int(lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now
	if remaining < cfg.Limit {
		perToken := cfg.Window / time.Duration(cfg.Limit)
		resetAt = now.Add(perToken)
	}

	return Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}, nil
}

func (l *TokenBucketLimiter) getLimiter(key string, cfg ClassConfig) *rate.Limiter {
	l.mu.RLock()
	entry, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		l.mu.Lock()
		entry.lastAccess = time.Now()
		l.mu.Unlock()
		return entry.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists := l.limiters[key]; exists {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	rps := rate.Limit(float64(cfg.Limit) / cfg.Window.Seconds())
	newLimiter := rate.NewLimiter(rps, cfg.Limit)
	l.limiters[key] = &bucketEntry{limiter: newLimiter, lastAccess: time.Now()}
	return newLimiter
}

// cleanup periodically removes idle buckets to prevent unbounded growth.
func (l *TokenBucketLimiter) cleanup() {
	defer close(l.cleanupDone)

	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			idleThreshold := time.Now().Add(-2 * l.cleanupInterval)
			for key, entry := range l.limiters {
				if entry.lastAccess.Before(idleThreshold) {
					delete(l.limiters, key)
				}
			}
			l.mu.Unlock()

		case <-l.cleanupStop:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (l *TokenBucketLimiter) Close() error {
	close(l.cleanupStop)
	<-l.cleanupDone
	return nil
}
