package api

import (
	"github.com/gofiber/fiber/v3"

	"parashasongs/internal/models"
	"parashasongs/internal/moderation"
	"parashasongs/internal/visits"
)

// StatsHandler reports site-wide counters.
type StatsHandler struct {
	mgr     *moderation.Manager
	counter *visits.Counter
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(mgr *moderation.Manager, counter *visits.Counter) *StatsHandler {
	return &StatsHandler{mgr: mgr, counter: counter}
}

type statsResponse struct {
	TotalSongs int64             `json:"total_songs"`
	Visits     models.VisitStats `json:"visits"`
}

// Show returns the approved song count and visit aggregates.
func (h *StatsHandler) Show(c fiber.Ctx) error {
	total, err := h.mgr.TotalSongs(c.Context())
	if err != nil {
		return handleError(c, err, "fetch stats")
	}

	stats, err := h.counter.Stats(c.Context())
	if err != nil {
		return handleError(c, err, "fetch stats")
	}

	return jsonSuccess(c, statsResponse{TotalSongs: total, Visits: stats})
}
