package talos

import (
	"log/slog"
	"net/http"

	"github.com/aegis-gateway/aegis/pkg/hermes"
)

// Shield wraps the upstream handler with a Breaker. Responses of 502 and
// above count as upstream failures; everything else counts as success.
// While the breaker is open the gateway answers 503 itself.
type Shield struct {
	breaker *Breaker
	next    http.Handler
	metrics hermes.Metrics
	logger  *slog.Logger
}

// NewShield wraps next. A nil metrics defaults to no-op.
func NewShield(breaker *Breaker, next http.Handler, metrics hermes.Metrics, logger *slog.Logger) *Shield {
	if metrics == nil {
		metrics = hermes.NewNoopMetrics()
	}
	return &Shield{breaker: breaker, next: next, metrics: metrics, logger: logger}
}

func (s *Shield) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.breaker.Allow() {
		s.metrics.IncCounter("talos_shed_total", 1)
		w.Header().Set("Retry-After", "30")
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.next.ServeHTTP(sw, r)

	if sw.status >= http.StatusBadGateway {
		s.breaker.RecordFailure()
		if s.breaker.State() == StateOpen {
			s.logger.Warn("upstream circuit opened", "status", sw.status, "path", r.URL.Path)
		}
		return
	}
	s.breaker.RecordSuccess()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
