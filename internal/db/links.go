package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"parashasongs/internal/models"
)

// linkColumns is the standard column list for link queries joined with songs.
const linkColumns = `l.id, l.target_kind, l.parasha_id, l.target_id, l.song_id, l.verse_ref,
	l.added_by, l.status, l.approval_token, l.approved_at, l.added_at, s.title, s.external_url`

// scanLink scans a row into a LinkWithSong.
func scanLink(row pgx.Row) (*models.LinkWithSong, error) {
	var link models.LinkWithSong
	err := row.Scan(
		&link.ID,
		&link.TargetKind,
		&link.ParashaID,
		&link.TargetID,
		&link.SongID,
		&link.VerseRef,
		&link.AddedBy,
		&link.Status,
		&link.ApprovalToken,
		&link.ApprovedAt,
		&link.AddedAt,
		&link.SongTitle,
		&link.SongURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// scanLinks scans multiple rows into a slice of LinkWithSong.
func scanLinks(rows pgx.Rows) ([]models.LinkWithSong, error) {
	defer rows.Close()

	links := []models.LinkWithSong{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}

	return links, rows.Err()
}

// InsertLink inserts a link row and returns its id.
func (d *PostgresDB) InsertLink(ctx context.Context, link *models.Link) (int64, error) {
	query := `
		INSERT INTO links (parasha_id, target_kind, target_id, song_id, verse_ref, added_by,
			status, approval_token, approved_at, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	if link.Status == "" {
		link.Status = models.StatusPending
	}
	if link.AddedAt.IsZero() {
		link.AddedAt = time.Now().UTC()
	}

	err := d.Pool.QueryRow(ctx, query,
		link.ParashaID,
		link.TargetKind,
		link.TargetID,
		link.SongID,
		link.VerseRef,
		link.AddedBy,
		link.Status,
		link.ApprovalToken,
		link.ApprovedAt,
		link.AddedAt,
	).Scan(&link.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateToken
		}
		return 0, fmt.Errorf("inserting link: %w", err)
	}

	return link.ID, nil
}

// GetLinkByID retrieves a link by its ID.
func (d *PostgresDB) GetLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.id = $1
	`
	return scanLink(d.Pool.QueryRow(ctx, query, id))
}

// GetLinksByParasha retrieves parasha and haftarah links for a portion.
func (d *PostgresDB) GetLinksByParasha(ctx context.Context, parashaID string, statuses ...string) ([]models.LinkWithSong, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.parasha_id = $1
			AND l.target_kind IN ($2, $3)
			AND l.status = ANY($4)
		ORDER BY l.added_at DESC, l.id DESC
	`
	rows, err := d.Pool.Query(ctx, query,
		parashaID,
		models.KindParasha,
		models.KindHaftarah,
		statusFilter(statuses),
	)
	if err != nil {
		return nil, err
	}
	return scanLinks(rows)
}

// GetLinksByTanach retrieves links for a single Tanach chapter.
func (d *PostgresDB) GetLinksByTanach(ctx context.Context, book string, chapter int, statuses ...string) ([]models.LinkWithSong, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.target_kind = $1
			AND l.target_id = $2
			AND l.status = ANY($3)
		ORDER BY l.added_at DESC, l.id DESC
	`
	rows, err := d.Pool.Query(ctx, query,
		models.KindTanach,
		models.TanachKey(book, chapter),
		statusFilter(statuses),
	)
	if err != nil {
		return nil, err
	}
	return scanLinks(rows)
}

// GetPendingLinks retrieves the moderation queue, oldest first.
func (d *PostgresDB) GetPendingLinks(ctx context.Context) ([]models.LinkWithSong, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.status = $1
		ORDER BY l.added_at ASC, l.id ASC
	`
	rows, err := d.Pool.Query(ctx, query, models.StatusPending)
	if err != nil {
		return nil, err
	}
	return scanLinks(rows)
}

// CountPending returns the number of pending links.
func (d *PostgresDB) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM links WHERE status = $1`, models.StatusPending).Scan(&count)
	return count, err
}

// ApproveLinkByToken redeems a token. The UPDATE and join run as one
// statement, so a concurrent redemption of the same token sees a NULL token
// and matches nothing.
func (d *PostgresDB) ApproveLinkByToken(ctx context.Context, token string) (*models.LinkWithSong, error) {
	query := `
		WITH l AS (
			UPDATE links
			SET status = $1, approval_token = NULL, approved_at = COALESCE(approved_at, $2)
			WHERE approval_token = $3 AND status = $4
			RETURNING *
		)
		SELECT ` + linkColumns + `
		FROM l
		JOIN songs s ON s.id = l.song_id
	`
	return scanLink(d.Pool.QueryRow(ctx, query,
		models.StatusApproved,
		time.Now().UTC(),
		token,
		models.StatusPending,
	))
}

// ApproveLinkByID approves a link unless it was rejected.
func (d *PostgresDB) ApproveLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	query := `
		WITH l AS (
			UPDATE links
			SET status = $1, approval_token = NULL, approved_at = COALESCE(approved_at, $2)
			WHERE id = $3 AND status <> $4
			RETURNING *
		)
		SELECT ` + linkColumns + `
		FROM l
		JOIN songs s ON s.id = l.song_id
	`
	link, err := scanLink(d.Pool.QueryRow(ctx, query,
		models.StatusApproved,
		time.Now().UTC(),
		id,
		models.StatusRejected,
	))
	if errors.Is(err, ErrLinkNotFound) {
		if _, getErr := d.GetLinkByID(ctx, id); getErr == nil {
			return nil, ErrInvalidTransition
		}
	}
	return link, err
}

// RejectLinkByID rejects a link.
func (d *PostgresDB) RejectLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	query := `
		WITH l AS (
			UPDATE links
			SET status = $1, approval_token = NULL, approved_at = NULL
			WHERE id = $2
			RETURNING *
		)
		SELECT ` + linkColumns + `
		FROM l
		JOIN songs s ON s.id = l.song_id
	`
	return scanLink(d.Pool.QueryRow(ctx, query, models.StatusRejected, id))
}

// DeleteLink deletes a link by ID.
func (d *PostgresDB) DeleteLink(ctx context.Context, id int64) error {
	result, err := d.Pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// GetTotalSongs counts distinct songs with at least one approved link.
func (d *PostgresDB) GetTotalSongs(ctx context.Context) (int64, error) {
	var count int64
	err := d.Pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT song_id) FROM links WHERE status = $1`,
		models.StatusApproved,
	).Scan(&count)
	return count, err
}
