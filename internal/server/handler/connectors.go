package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// StateSource supplies the current snapshot of every venue connector.
type StateSource interface {
	States() []domain.ConnectorState
}

// RecorderStats exposes the persistence counters shown alongside connector
// state.
type RecorderStats interface {
	Stats() (persisted, rejected uint64)
}

// ConnectorsHandler serves the connector status endpoint.
type ConnectorsHandler struct {
	states   StateSource
	recorder RecorderStats
	logger   *slog.Logger
}

// NewConnectorsHandler creates a ConnectorsHandler.
func NewConnectorsHandler(states StateSource, recorder RecorderStats, logger *slog.Logger) *ConnectorsHandler {
	return &ConnectorsHandler{
		states:   states,
		recorder: recorder,
		logger:   logHandler(logger, "connectors"),
	}
}

// ListConnectors returns the state of every venue connector plus recorder
// counters.
// GET /api/connectors
func (h *ConnectorsHandler) ListConnectors(w http.ResponseWriter, r *http.Request) {
	states := h.states.States()

	resp := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"connectors": states,
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
