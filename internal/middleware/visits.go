package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"
)

// VisitRecorder stores a visit.
type VisitRecorder interface {
	Record(ctx context.Context, ip, userAgent string) error
}

// RecordVisit stores a visit for every successful GET. Failures are logged
// and never affect the response.
func RecordVisit(recorder VisitRecorder, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		err := c.Next()
		if err != nil || c.Method() != fiber.MethodGet || c.Response().StatusCode() >= fiber.StatusBadRequest {
			return err
		}

		if recErr := recorder.Record(c.Context(), c.IP(), c.Get(fiber.HeaderUserAgent)); recErr != nil {
			logger.Warn("recording visit failed", "error", recErr)
		}
		return nil
	}
}
