// Package moderation owns the link lifecycle: submission, approval by
// single-use token or moderator action, rejection and deletion.
package moderation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parashasongs/internal/config"
	"parashasongs/internal/db"
	"parashasongs/internal/metrics"
	"parashasongs/internal/models"
	"parashasongs/internal/notify"
	"parashasongs/internal/validation"
)

// tokenBytes is the amount of randomness in an approval token.
const tokenBytes = 32

// maxTokenAttempts bounds retries after an approval token collision.
const maxTokenAttempts = 3

// Catalog looks up weekly portions in the reference dataset.
type Catalog interface {
	Parasha(id string) (*config.Parasha, bool)
}

// Notifier announces pending submissions without blocking.
type Notifier interface {
	NotifyAsync(p notify.Payload)
}

// SubmitInput is a raw submission. Only the fields of the chosen target kind
// are read.
type SubmitInput struct {
	Title      string
	URL        string
	TargetKind string
	ParashaID  string
	HaftarahID string
	Book       string
	Chapter    int
	VerseRef   string
	AddedBy    string
}

// SubmitResult is returned to the submitter. It never carries the token.
type SubmitResult struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	SongID      string `json:"song_id"`
	SongCreated bool   `json:"song_created"`
}

// Manager runs the moderation state machine on top of a Gateway.
type Manager struct {
	gw       db.Gateway
	songs    *SongResolver
	catalog  Catalog
	notifier Notifier
	logger   *slog.Logger

	tokenMode bool
	baseURL   string
	newToken  func() (string, error)
	now       func() time.Time
}

// NewManager creates a manager. Token moderation and the approval URL base
// come from cfg.
func NewManager(gw db.Gateway, catalog Catalog, notifier Notifier, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		gw:        gw,
		songs:     NewSongResolver(gw),
		catalog:   catalog,
		notifier:  notifier,
		logger:    logger,
		tokenMode: cfg.IsTokenModeration(),
		baseURL:   cfg.BaseURL,
		newToken:  generateToken,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a new link. Moderator submissions are
// approved immediately; everything else starts pending and is announced
// through the notifier.
func (m *Manager) Submit(ctx context.Context, in SubmitInput, isModerator bool) (*SubmitResult, error) {
	title, err := validation.SanitizeTitle(in.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	url, err := validation.CanonicalURL(in.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	target, err := m.validateTarget(in)
	if err != nil {
		return nil, err
	}

	song, created, err := m.songs.Resolve(ctx, title, url)
	if err != nil {
		return nil, err
	}

	parashaID, targetID := target.Columns()
	link := &models.Link{
		TargetKind: target.Kind,
		ParashaID:  parashaID,
		TargetID:   targetID,
		SongID:     song.ID,
		VerseRef:   validation.SanitizeText(in.VerseRef, validation.MaxVerseRefLength),
		AddedBy:    validation.SanitizeText(in.AddedBy, validation.MaxAddedByLength),
		AddedAt:    m.now(),
	}

	if isModerator {
		link.Status = models.StatusApproved
		approvedAt := link.AddedAt
		link.ApprovedAt = &approvedAt
	} else {
		link.Status = models.StatusPending
	}

	if err := m.insert(ctx, link, !isModerator && m.tokenMode); err != nil {
		return nil, err
	}
	metrics.RecordSubmission(link.Status)

	m.logger.Info("link submitted",
		"link_id", link.ID,
		"status", link.Status,
		"target_kind", link.TargetKind,
		"target", target.ID(),
		"song_id", song.ID,
		"song_created", created,
	)

	if link.IsPending() {
		m.notifier.NotifyAsync(m.payload(link, song))
	}

	return &SubmitResult{
		ID:          link.ID,
		Status:      link.Status,
		SongID:      song.ID,
		SongCreated: created,
	}, nil
}

// insert stores link, minting a fresh token per attempt when withToken is set.
func (m *Manager) insert(ctx context.Context, link *models.Link, withToken bool) error {
	for attempt := 1; ; attempt++ {
		if withToken {
			token, err := m.newToken()
			if err != nil {
				return fmt.Errorf("generating approval token: %w", err)
			}
			link.ApprovalToken = &token
		}

		_, err := m.gw.InsertLink(ctx, link)
		if err == nil {
			return nil
		}
		if !withToken || !errors.Is(err, db.ErrDuplicateToken) || attempt >= maxTokenAttempts {
			return err
		}
		m.logger.Warn("approval token collision, retrying", "attempt", attempt)
	}
}

func (m *Manager) validateTarget(in SubmitInput) (models.Target, error) {
	switch in.TargetKind {
	case models.KindParasha, "":
		if _, ok := m.catalog.Parasha(in.ParashaID); !ok {
			return models.Target{}, fmt.Errorf("%w: %q", ErrUnknownParasha, in.ParashaID)
		}
		return models.ParashaTarget(in.ParashaID), nil

	case models.KindHaftarah:
		p, ok := m.catalog.Parasha(in.ParashaID)
		if !ok {
			return models.Target{}, fmt.Errorf("%w: %q", ErrUnknownParasha, in.ParashaID)
		}
		if !p.HasHaftarah(in.HaftarahID) {
			return models.Target{}, fmt.Errorf("%w: %q for %q", ErrUnknownHaftarah, in.HaftarahID, in.ParashaID)
		}
		return models.HaftarahTarget(in.ParashaID, in.HaftarahID), nil

	case models.KindTanach:
		if !validation.ValidateID(in.Book) || in.Chapter < 1 {
			return models.Target{}, fmt.Errorf("%w: tanach target needs a book and a chapter >= 1", ErrInvalidTarget)
		}
		return models.TanachTarget(in.Book, in.Chapter), nil
	}

	return models.Target{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, in.TargetKind)
}

func (m *Manager) payload(link *models.Link, song *models.Song) notify.Payload {
	p := notify.Payload{
		LinkID:      link.ID,
		TargetKind:  link.TargetKind,
		ParashaID:   link.ParashaID,
		TargetID:    link.TargetID,
		SongTitle:   song.Title,
		SongURL:     song.ExternalURL,
		VerseRef:    link.VerseRef,
		AddedBy:     link.AddedBy,
		SubmittedAt: link.AddedAt,
	}
	if link.ApprovalToken != nil {
		p.ApprovalURL = m.ApprovalURL(*link.ApprovalToken)
	}
	return p
}

// ApprovalURL returns the public redemption link for token.
func (m *Manager) ApprovalURL(token string) string {
	return m.baseURL + "/approve/" + token
}

// RedeemToken approves the link holding token. A token works once; later
// attempts return db.ErrLinkNotFound.
func (m *Manager) RedeemToken(ctx context.Context, token string) (*models.LinkWithSong, error) {
	if token == "" {
		return nil, db.ErrLinkNotFound
	}
	link, err := m.gw.ApproveLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	m.logger.Info("link approved by token", "link_id", link.ID)
	return link, nil
}

// Approve approves a link by id. Approving an approved link is a no-op;
// rejected links return db.ErrInvalidTransition.
func (m *Manager) Approve(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	link, err := m.gw.ApproveLinkByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.logger.Info("link approved", "link_id", id)
	return link, nil
}

// Reject rejects a link by id from any status, clearing its token and
// approval time.
func (m *Manager) Reject(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	link, err := m.gw.RejectLinkByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.logger.Info("link rejected", "link_id", id)
	return link, nil
}

// ListPending returns the moderation queue, oldest first.
func (m *Manager) ListPending(ctx context.Context) ([]models.LinkWithSong, error) {
	return m.gw.GetPendingLinks(ctx)
}

// DeleteLink hard-deletes a link.
func (m *Manager) DeleteLink(ctx context.Context, id int64) error {
	if err := m.gw.DeleteLink(ctx, id); err != nil {
		return err
	}
	m.logger.Info("link deleted", "link_id", id)
	return nil
}

// DeleteSong hard-deletes a song and all of its links.
func (m *Manager) DeleteSong(ctx context.Context, id string) error {
	if err := m.gw.DeleteSong(ctx, id); err != nil {
		return err
	}
	m.logger.Info("song deleted", "song_id", id)
	return nil
}

// LinksForParasha returns the approved links for a portion and its haftarot.
func (m *Manager) LinksForParasha(ctx context.Context, parashaID string) ([]models.LinkWithSong, error) {
	if _, ok := m.catalog.Parasha(parashaID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParasha, parashaID)
	}
	return m.gw.GetLinksByParasha(ctx, parashaID)
}

// LinksForTanach returns the approved links for a Tanach chapter.
func (m *Manager) LinksForTanach(ctx context.Context, book string, chapter int) ([]models.LinkWithSong, error) {
	if !validation.ValidateID(book) || chapter < 1 {
		return nil, fmt.Errorf("%w: tanach target needs a book and a chapter >= 1", ErrInvalidTarget)
	}
	return m.gw.GetLinksByTanach(ctx, book, chapter)
}

// TotalSongs counts distinct songs with at least one approved link.
func (m *Manager) TotalSongs(ctx context.Context) (int64, error) {
	return m.gw.GetTotalSongs(ctx)
}

// generateToken returns 32 random bytes, hex encoded.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
