package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

const readyTimeout = 2 * time.Second

// Backend is the store behind the readiness check.
type Backend interface {
	Driver() string
	Ping(ctx context.Context) error
}

// HealthHandler serves /healthz and /readyz.
type HealthHandler struct {
	backend Backend
}

func NewHealthHandler(backend Backend) *HealthHandler {
	return &HealthHandler{backend: backend}
}

// Liveness never touches the database.
func (h *HealthHandler) Liveness(c fiber.Ctx) error {
	return jsonOK(c, fiber.Map{"backend": h.backend.Driver()})
}

// Readiness pings the configured backend and reports which one answered
// and how long the round trip took.
func (h *HealthHandler) Readiness(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readyTimeout)
	defer cancel()

	driver := h.backend.Driver()
	start := time.Now()
	if err := h.backend.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "error",
			"backend": driver,
			"error":   driver + " database unavailable",
		})
	}

	return jsonOK(c, fiber.Map{
		"backend":    driver,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

func jsonOK(c fiber.Ctx, data fiber.Map) error {
	return c.JSON(fiber.Map{"status": "ok", "data": data})
}
