package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parashasongs/internal/models"
)

// FindSongByIdentity finds a song by exact title and url.
func (s *SQLiteDB) FindSongByIdentity(ctx context.Context, title string, url *string) (*models.Song, error) {
	var song models.Song
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, title, version, external_url
		FROM songs
		WHERE title = ? AND COALESCE(external_url, '') = ?
		ORDER BY id
		LIMIT 1`, title, identityURL(url)).Scan(
		&song.ID,
		&song.Title,
		&song.Version,
		&song.ExternalURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding song: %w", err)
	}
	return &song, nil
}

// InsertSong inserts a new song.
func (s *SQLiteDB) InsertSong(ctx context.Context, song *models.Song) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO songs (id, title, version, external_url) VALUES (?, ?, 0, ?)`,
		song.ID, song.Title, song.ExternalURL,
	)
	if err != nil {
		return fmt.Errorf("inserting song: %w", err)
	}
	return nil
}

// DeleteSong removes the song's links and then the song in one transaction.
// Databases created before foreign keys were enforced have no cascade.
func (s *SQLiteDB) DeleteSong(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE song_id = ?`, id); err != nil {
		return fmt.Errorf("deleting links for song %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting song %s: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrSongNotFound
	}

	return tx.Commit()
}

// RecordVisit appends a visit row.
func (s *SQLiteDB) RecordVisit(ctx context.Context, visit *models.Visit) error {
	if visit.VisitedAt.IsZero() {
		visit.VisitedAt = time.Now().UTC()
	}
	return s.db.QueryRowxContext(ctx,
		`INSERT INTO visits (ip, user_agent, visited_at) VALUES (?, ?, ?) RETURNING id`,
		visit.IP, visit.UserAgent, formatTime(visit.VisitedAt),
	).Scan(&visit.ID)
}

// GetVisitStats returns total, distinct-ip and last-24h visit counts.
func (s *SQLiteDB) GetVisitStats(ctx context.Context) (models.VisitStats, error) {
	var stats models.VisitStats
	err := s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*),
			COUNT(DISTINCT ip),
			COALESCE(SUM(CASE WHEN visited_at >= ? THEN 1 ELSE 0 END), 0)
		FROM visits`,
		formatTime(time.Now().Add(-24*time.Hour)),
	).Scan(&stats.Total, &stats.UniqueIPs, &stats.Last24h)
	return stats, err
}
