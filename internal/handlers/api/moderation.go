package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"parashasongs/internal/moderation"
)

// ModerationHandler serves the moderator queue and link actions.
type ModerationHandler struct {
	mgr *moderation.Manager
}

// NewModerationHandler creates a new API moderation handler.
func NewModerationHandler(mgr *moderation.Manager) *ModerationHandler {
	return &ModerationHandler{mgr: mgr}
}

// ListPending returns pending links, oldest first.
func (h *ModerationHandler) ListPending(c fiber.Ctx) error {
	links, err := h.mgr.ListPending(c.Context())
	if err != nil {
		return handleError(c, err, "fetch pending links")
	}
	return jsonSuccess(c, links)
}

// Approve approves a link by id.
func (h *ModerationHandler) Approve(c fiber.Ctx) error {
	id, ok := linkID(c)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid link id")
	}

	link, err := h.mgr.Approve(c.Context(), id)
	if err != nil {
		return handleError(c, err, "approve link")
	}
	return jsonSuccess(c, link)
}

// Reject rejects a link by id.
func (h *ModerationHandler) Reject(c fiber.Ctx) error {
	id, ok := linkID(c)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid link id")
	}

	link, err := h.mgr.Reject(c.Context(), id)
	if err != nil {
		return handleError(c, err, "reject link")
	}
	return jsonSuccess(c, link)
}

// DeleteLink hard-deletes a link.
func (h *ModerationHandler) DeleteLink(c fiber.Ctx) error {
	id, ok := linkID(c)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid link id")
	}

	if err := h.mgr.DeleteLink(c.Context(), id); err != nil {
		return handleError(c, err, "delete link")
	}
	return jsonSuccess(c, fiber.Map{"deleted": id})
}

// DeleteSong hard-deletes a song with all of its links.
func (h *ModerationHandler) DeleteSong(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.mgr.DeleteSong(c.Context(), id); err != nil {
		return handleError(c, err, "delete song")
	}
	return jsonSuccess(c, fiber.Map{"deleted": id})
}

// Redeem approves the link holding the token in the URL.
func (h *ModerationHandler) Redeem(c fiber.Ctx) error {
	link, err := h.mgr.RedeemToken(c.Context(), c.Params("token"))
	if err != nil {
		return handleError(c, err, "approve link")
	}
	return jsonSuccess(c, link)
}

// linkID parses the :id route parameter.
func linkID(c fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}
