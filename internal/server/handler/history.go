package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadwatch/internal/history"
)

// HistoryHandler serves the bucketed spread-history series.
type HistoryHandler struct {
	agg    *history.Aggregator
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler over the given aggregator.
func NewHistoryHandler(agg *history.Aggregator, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		agg:    agg,
		logger: logHandler(logger, "history"),
	}
}

// historyPoint is one bucket in the response. Spread is serialized as a
// string so clients never lose precision to float rounding.
type historyPoint struct {
	Timestamp time.Time `json:"ts"`
	Spread    string    `json:"spread"`
	Filled    bool      `json:"filled"`
}

// GetHistory returns the dense bucket series for one symbol.
// GET /api/spreads/history?symbol=BTC/USDT
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol parameter")
		return
	}

	buckets, err := h.agg.Series(r.Context(), symbol, time.Now())
	if err != nil {
		h.logger.Error("series failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load spread history")
		return
	}

	points := make([]historyPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, historyPoint{
			Timestamp: b.Boundary,
			Spread:    b.Spread.StringFixed(2),
			Filled:    b.Filled,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"points": points,
	})
}
