package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parashasongs/internal/db"
	"parashasongs/internal/models"
)

type memorySongs struct {
	songs   []models.Song
	findErr error
}

func (m *memorySongs) FindSongByIdentity(ctx context.Context, title string, url *string) (*models.Song, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	want := ""
	if url != nil {
		want = *url
	}
	for i := range m.songs {
		if m.songs[i].Title == title && m.songs[i].URL() == want {
			return &m.songs[i], nil
		}
	}
	return nil, db.ErrSongNotFound
}

func (m *memorySongs) InsertSong(ctx context.Context, song *models.Song) error {
	m.songs = append(m.songs, *song)
	return nil
}

func TestResolveCreatesOnce(t *testing.T) {
	store := &memorySongs{}
	r := NewSongResolver(store)
	ctx := context.Background()
	url := "https://example.com/a"

	song, created, err := r.Resolve(ctx, "Oseh Shalom", &url)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, song.ID, 36)

	again, created, err := r.Resolve(ctx, "Oseh Shalom", &url)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, song.ID, again.ID)

	_, created, err = r.Resolve(ctx, "Oseh Shalom", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, store.songs, 2)
}

func TestResolveBackendError(t *testing.T) {
	r := NewSongResolver(&memorySongs{findErr: errors.New("connection reset")})

	_, _, err := r.Resolve(context.Background(), "x", nil)
	assert.ErrorContains(t, err, "connection reset")
}
