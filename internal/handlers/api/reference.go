package api

import (
	"github.com/gofiber/fiber/v3"

	"parashasongs/internal/config"
)

// ReferenceHandler exposes the parashot and Tanach books clients pick from.
type ReferenceHandler struct {
	ref *config.Reference
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(ref *config.Reference) *ReferenceHandler {
	return &ReferenceHandler{ref: ref}
}

// Parashot lists all weekly portions with their haftarot.
func (h *ReferenceHandler) Parashot(c fiber.Ctx) error {
	return jsonSuccess(c, h.ref.Parashot)
}

// Books lists the Tanach books with chapter counts.
func (h *ReferenceHandler) Books(c fiber.Ctx) error {
	return jsonSuccess(c, h.ref.Books)
}
