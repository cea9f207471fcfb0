package talos

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute, 1)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != StateClosed {
		t.Fatal("breaker opened before threshold")
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatal("breaker should open at threshold")
	}
	if b.Allow() {
		t.Error("open breaker must reject")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Minute, 1)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Error("non-consecutive failures should not open the breaker")
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, time.Millisecond, 2)

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	time.Sleep(5 * time.Millisecond)

	// Cooldown elapsed: probes pass, extras are rejected.
	if !b.Allow() {
		t.Fatal("first probe should pass")
	}
	if b.State() != StateHalfOpen {
		t.Fatal("breaker should be half-open")
	}
	if !b.Allow() {
		t.Fatal("second probe should pass")
	}
	if b.Allow() {
		t.Error("probe budget exhausted, request should be rejected")
	}

	b.RecordSuccess()
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Error("enough probe successes should close the breaker")
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Millisecond, 2)

	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	b.Allow()

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Error("failed probe must reopen the breaker")
	}
}

func TestShield_ShedsWhenOpen(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	breaker := NewBreaker(2, time.Minute, 1)
	shield := NewShield(breaker, upstream, nil, discardLogger())

	// Two upstream failures open the breaker.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		shield.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("got %d, want upstream 502 passed through", rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	shield.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503 from open breaker", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("shed response should hint Retry-After")
	}
}

func TestShield_SuccessKeepsClosed(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	breaker := NewBreaker(1, time.Minute, 1)
	shield := NewShield(breaker, upstream, nil, discardLogger())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		shield.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d, want 200", rec.Code)
		}
	}
	if breaker.State() != StateClosed {
		t.Error("healthy upstream should keep the breaker closed")
	}
}
