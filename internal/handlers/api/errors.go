package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"parashasongs/internal/db"
	"parashasongs/internal/middleware"
	"parashasongs/internal/moderation"
)

// handleError maps domain errors onto HTTP responses.
func handleError(c fiber.Ctx, err error, action string) error {
	switch {
	case moderation.IsValidation(err):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrLinkNotFound):
		return jsonError(c, fiber.StatusNotFound, "link not found")
	case errors.Is(err, db.ErrSongNotFound):
		return jsonError(c, fiber.StatusNotFound, "song not found")
	case errors.Is(err, db.ErrInvalidTransition):
		return jsonError(c, fiber.StatusConflict, "link was rejected and cannot be approved")
	}

	slog.Error("request failed", "action", action, "path", c.Path(), "error", err)
	return jsonError(c, fiber.StatusInternalServerError, "failed to "+action)
}

// isModerator reads the flag set by the moderator middleware.
func isModerator(c fiber.Ctx) bool {
	ok, _ := c.Locals(middleware.LocalModerator).(bool)
	return ok
}
