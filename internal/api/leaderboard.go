package api

import (
	"net/http"
	"time"

	"github.com/leafsii/feed-backend/internal/apperr"
)

// GetLeaderboard ranks users by karma earned in the trailing window_hours.
// limit is capped at the configured maximum.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Leaderboard

	window := cfg.Window
	if r.URL.Query().Get("window_hours") != "" {
		hours, err := queryInt(r, "window_hours", 0)
		if err != nil || hours <= 0 {
			h.writeAppError(w, r, apperr.ErrInvalidWindow)
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	limit, err := queryInt(r, "limit", cfg.Limit)
	if err != nil || limit <= 0 {
		h.writeAppError(w, r, apperr.ErrInvalidLimit)
		return
	}
	limit = min(limit, cfg.MaxLimit)

	board, err := h.aggregator.Compute(r.Context(), window, limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, board)
}
