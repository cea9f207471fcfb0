package mnemosyne

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-gateway/aegis/pkg/domain"
	"github.com/aegis-gateway/aegis/pkg/hermes"
)

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
	retryBackoff        = 100 * time.Millisecond
)

// DefaultStatsWindow is the trailing window for the admin stats view.
const DefaultStatsWindow = 24 * time.Hour

// recentEventCap bounds the recent-events list in stats responses.
const recentEventCap = 50

// Recorder is the fire-and-forget front of the audit trail. Record never
// blocks the request path and never returns an error: events flow through a
// bounded queue to a single writer goroutine, and anything that cannot be
// written durably degrades to the fallback logger.
type Recorder struct {
	store   Store
	queue   chan *domain.SecurityEvent
	logger  *slog.Logger
	metrics hermes.Metrics

	writeTimeout time.Duration
	done         chan struct{}
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithQueueSize overrides the bounded queue depth.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan *domain.SecurityEvent, n)
		}
	}
}

// WithWriteTimeout bounds each durable write attempt.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRecorder starts the writer goroutine over the given store.
func NewRecorder(store Store, logger *slog.Logger, metrics hermes.Metrics, opts ...RecorderOption) *Recorder {
	if metrics == nil {
		metrics = hermes.NewNoopMetrics()
	}
	r := &Recorder{
		store:        store,
		queue:        make(chan *domain.SecurityEvent, defaultQueueSize),
		logger:       logger,
		metrics:      metrics,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.drain()
	return r
}

// Record enqueues one security event. It assigns the ID and timestamp, and
// returns immediately; a full queue drops the event to the fallback logger
// rather than block the request.
func (r *Recorder) Record(eventType domain.EventType, userID string, details map[string]any, ip, userAgent string) {
	event := &domain.SecurityEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: time.Now(),
	}

	select {
	case r.queue <- event:
		r.metrics.SetGauge("mnemosyne_queue_depth", float64(len(r.queue)))
	default:
		r.fallback(event, nil)
		r.metrics.IncCounter("mnemosyne_events_dropped_total", 1,
			hermes.Label{Key: "reason", Value: "queue_full"})
	}
}

func (r *Recorder) drain() {
	defer close(r.done)

	for event := range r.queue {
		r.write(event)
	}
}

// write attempts the durable write with one bounded retry, then degrades.
func (r *Recorder) write(event *domain.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	err := r.store.Write(ctx, event)
	if err == nil {
		r.metrics.IncCounter("mnemosyne_events_written_total", 1,
			hermes.Label{Key: "event_type", Value: string(event.Type)})
		return
	}

	time.Sleep(retryBackoff)
	if retryErr := r.store.Write(ctx, event); retryErr == nil {
		r.metrics.IncCounter("mnemosyne_events_written_total", 1,
			hermes.Label{Key: "event_type", Value: string(event.Type)})
		return
	}

	r.fallback(event, err)
	r.metrics.IncCounter("mnemosyne_events_dropped_total", 1,
		hermes.Label{Key: "reason", Value: "write_failed"})
}

// fallback logs the event to the process error stream so a failing store
// still leaves some trace.
func (r *Recorder) fallback(event *domain.SecurityEvent, cause error) {
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
		slog.String("user_id", event.UserID),
		slog.String("ip", event.IP),
	}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	r.logger.Error("audit event not durably recorded", attrs...)
}

// Close stops accepting events, drains the queue, and waits for the writer
// up to the context deadline.
func (r *Recorder) Close(ctx context.Context) error {
	close(r.queue)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats

// Stats summarizes the trail over a trailing window for the admin surface.
type Stats struct {
	TotalEvents          int                    `json:"totalEvents"`
	SuspiciousActivities int                    `json:"suspiciousActivities"`
	FailedLogins         int                    `json:"failedLogins"`
	RateLimitExceeded    int                    `json:"rateLimitExceeded"`
	UnauthorizedAccess   int                    `json:"unauthorizedAccess"`
	RecentEvents         []domain.SecurityEvent `json:"recentEvents"`
}

// loginFailureTypes are counted as failed logins in addition to the
// substring categories.
var loginFailureTypes = map[domain.EventType]bool{
	domain.EventLoginFailed:            true,
	domain.EventLoginBlocked:           true,
	domain.EventLoginRateLimitExceeded: true,
}

// Stats aggregates events within the trailing window. window <= 0 uses
// DefaultStatsWindow. Categories are substring matches on the event type,
// so one event may count toward more than one category.
func (r *Recorder) Stats(ctx context.Context, window time.Duration) (*Stats, error) {
	if window <= 0 {
		window = DefaultStatsWindow
	}

	events, err := r.store.Query(ctx, time.Now().Add(-window), 0)
	if err != nil {
		return nil, &AuditError{Message: "failed to query audit trail", Cause: err}
	}

	stats := &Stats{TotalEvents: len(events)}
	for _, ev := range events {
		name := string(ev.Type)
		if strings.Contains(name, "SUSPICIOUS") {
			stats.SuspiciousActivities++
		}
		if strings.Contains(name, "RATE_LIMIT") {
			stats.RateLimitExceeded++
		}
		if strings.Contains(name, "UNAUTHORIZED") {
			stats.UnauthorizedAccess++
		}
		if loginFailureTypes[ev.Type] {
			stats.FailedLogins++
		}
	}

	if len(events) > recentEventCap {
		events = events[:recentEventCap]
	}
	stats.RecentEvents = events

	return stats, nil
}
