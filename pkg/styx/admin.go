package styx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aegis-gateway/aegis/pkg/mnemosyne"
)

// StatsHandler serves the aggregated security view for the admin surface.
// Access control is not its concern: it is mounted behind the gateway,
// whose rule table restricts /admin/security to ADMIN and above.
type StatsHandler struct {
	recorder *mnemosyne.Recorder
	logger   *slog.Logger
	window   time.Duration
}

// NewStatsHandler creates the handler. window <= 0 uses the default
// trailing 24 hours.
func NewStatsHandler(recorder *mnemosyne.Recorder, logger *slog.Logger, window time.Duration) *StatsHandler {
	if window <= 0 {
		window = mnemosyne.DefaultStatsWindow
	}
	return &StatsHandler{recorder: recorder, logger: logger, window: window}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.recorder.Stats(r.Context(), h.window)
	if err != nil {
		h.logger.Error("failed to compute security stats", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode security stats", "error", err)
	}
}
