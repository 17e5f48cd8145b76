package api

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"parashasongs/internal/moderation"
)

// LinkHandler serves public link submission and listings.
type LinkHandler struct {
	mgr *moderation.Manager
}

// NewLinkHandler creates a new API link handler.
func NewLinkHandler(mgr *moderation.Manager) *LinkHandler {
	return &LinkHandler{mgr: mgr}
}

type submitRequest struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	TargetKind string `json:"target_kind"`
	ParashaID  string `json:"parasha_id"`
	HaftarahID string `json:"haftarah_id"`
	Book       string `json:"book"`
	Chapter    int    `json:"chapter"`
	VerseRef   string `json:"verse_ref"`
	AddedBy    string `json:"added_by"`
}

// Submit stores a new link. Anonymous submissions start pending.
func (h *LinkHandler) Submit(c fiber.Ctx) error {
	var body submitRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.mgr.Submit(c.Context(), moderation.SubmitInput{
		Title:      body.Title,
		URL:        body.URL,
		TargetKind: body.TargetKind,
		ParashaID:  body.ParashaID,
		HaftarahID: body.HaftarahID,
		Book:       body.Book,
		Chapter:    body.Chapter,
		VerseRef:   body.VerseRef,
		AddedBy:    body.AddedBy,
	}, isModerator(c))
	if err != nil {
		return handleError(c, err, "submit link")
	}

	return jsonCreated(c, res)
}

// ByParasha lists approved links for a portion and its haftarot.
func (h *LinkHandler) ByParasha(c fiber.Ctx) error {
	links, err := h.mgr.LinksForParasha(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err, "fetch links")
	}
	return jsonSuccess(c, links)
}

// ByTanach lists approved links for a Tanach chapter.
func (h *LinkHandler) ByTanach(c fiber.Ctx) error {
	chapter, err := strconv.Atoi(c.Params("chapter"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid chapter")
	}

	links, err := h.mgr.LinksForTanach(c.Context(), c.Params("book"), chapter)
	if err != nil {
		return handleError(c, err, "fetch links")
	}
	return jsonSuccess(c, links)
}
