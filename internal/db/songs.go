package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"parashasongs/internal/models"
)

// FindSongByIdentity finds a song by exact title and url.
func (d *PostgresDB) FindSongByIdentity(ctx context.Context, title string, url *string) (*models.Song, error) {
	query := `
		SELECT id, title, version, external_url
		FROM songs
		WHERE title = $1 AND COALESCE(external_url, '') = $2
		ORDER BY id
		LIMIT 1
	`

	var song models.Song
	err := d.Pool.QueryRow(ctx, query, title, identityURL(url)).Scan(
		&song.ID,
		&song.Title,
		&song.Version,
		&song.ExternalURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding song: %w", err)
	}
	return &song, nil
}

// InsertSong inserts a new song.
func (d *PostgresDB) InsertSong(ctx context.Context, song *models.Song) error {
	_, err := d.Pool.Exec(ctx,
		`INSERT INTO songs (id, title, version, external_url) VALUES ($1, $2, 0, $3)`,
		song.ID, song.Title, song.ExternalURL,
	)
	if err != nil {
		return fmt.Errorf("inserting song: %w", err)
	}
	return nil
}

// DeleteSong deletes a song; links go with it through ON DELETE CASCADE.
func (d *PostgresDB) DeleteSong(ctx context.Context, id string) error {
	result, err := d.Pool.Exec(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSongNotFound
	}
	return nil
}
