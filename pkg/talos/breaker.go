// Package talos shields the upstream backend: when it starts failing, the
// gateway stops hammering it and sheds load at the edge instead.
package talos

import (
	"sync"
	"time"
)

// State is the breaker's position.
type State int

const (
	// StateClosed passes requests through normally.
	StateClosed State = iota
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a few probe requests to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a classic three-state circuit breaker. Consecutive failures
// open it; after the cooldown a bounded number of probes may pass, and
// enough probe successes close it again. Any probe failure reopens it.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	probes    int

	state        State
	failures     int
	successes    int
	lastFailure  time.Time
	probeAllowed int

	mu sync.RWMutex
}

// NewBreaker builds a breaker opening after threshold consecutive failures,
// cooling down for cooldown, then testing with probes requests.
func NewBreaker(threshold int, cooldown time.Duration, probes int) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		probes:    probes,
		state:     StateClosed,
	}
}

// Allow reports whether a request may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(b.lastFailure) >= b.cooldown {
			b.state = StateHalfOpen
			b.probeAllowed = 1
			return true
		}
		return false

	case StateHalfOpen:
		if b.probeAllowed < b.probes {
			b.probeAllowed++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess feeds back a completed upstream request.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		b.successes++
		if b.successes >= b.probes {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			b.probeAllowed = 0
		}
	}
}

// RecordFailure feeds back a failed upstream request.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
		}

	case StateHalfOpen:
		// One failed probe is enough; back to open.
		b.state = StateOpen
		b.successes = 0
		b.probeAllowed = 0
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forces the breaker closed. Operational escape hatch.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probeAllowed = 0
}
