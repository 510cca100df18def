package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// HealthHandler reports process liveness plus a feed-level summary, so load
// balancers and operators read the same endpoint.
type HealthHandler struct {
	states    StateSource
	recorder  RecorderStats
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the connector and recorder
// state sources.
func NewHealthHandler(states StateSource, recorder RecorderStats, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		states:    states,
		recorder:  recorder,
		startedAt: time.Now().UTC(),
		logger:    logHandler(logger, "health"),
	}
}

// HealthCheck reports "ok" while no feed has failed terminally and
// "degraded" once one has; the process stays up either way, so the HTTP
// status is always 200.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var connected, failed int
	states := h.states.States()
	for _, s := range states {
		switch s.Status {
		case domain.StatusConnected:
			connected++
		case domain.StatusFailed:
			failed++
		}
	}

	status := "ok"
	if failed > 0 {
		status = "degraded"
	}

	resp := map[string]any{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"connectors": map[string]int{
			"total":     len(states),
			"connected": connected,
			"failed":    failed,
		},
	}
	if h.recorder != nil {
		persisted, rejected := h.recorder.Stats()
		resp["recorder"] = map[string]uint64{
			"persisted": persisted,
			"rejected":  rejected,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
