package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"parashasongs/internal/models"
)

// sqliteLinkColumns is the link column list used in joined SELECTs.
const sqliteLinkColumns = `l.id, l.target_kind, l.parasha_id, l.target_id, l.song_id, l.verse_ref,
	l.added_by, l.status, l.approval_token, l.approved_at, l.added_at, s.title, s.external_url`

// sqliteReturning mirrors sqliteLinkColumns for UPDATE ... RETURNING, where
// the song fields come from correlated subqueries on the updated row.
const sqliteReturning = `id, target_kind, parasha_id, target_id, song_id, verse_ref,
	added_by, status, approval_token, approved_at, added_at,
	COALESCE((SELECT s.title FROM songs s WHERE s.id = links.song_id), ''),
	(SELECT s.external_url FROM songs s WHERE s.id = links.song_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteLink scans a row into a LinkWithSong.
func scanSQLiteLink(row rowScanner) (*models.LinkWithSong, error) {
	var (
		link       models.LinkWithSong
		kind       sql.NullString
		status     sql.NullString
		approvedAt sqliteTime
		addedAt    sqliteTime
	)
	err := row.Scan(
		&link.ID,
		&kind,
		&link.ParashaID,
		&link.TargetID,
		&link.SongID,
		&link.VerseRef,
		&link.AddedBy,
		&status,
		&link.ApprovalToken,
		&approvedAt,
		&addedAt,
		&link.SongTitle,
		&link.SongURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}

	link.TargetKind = kind.String
	link.Status = status.String
	link.ApprovedAt = approvedAt.Ptr()
	link.AddedAt = addedAt.Time
	return &link, nil
}

// scanSQLiteLinks scans multiple rows into a slice of LinkWithSong.
func scanSQLiteLinks(rows *sqlx.Rows) ([]models.LinkWithSong, error) {
	defer rows.Close()

	links := []models.LinkWithSong{}
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning link row: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// InsertLink inserts a link row and returns its id.
func (s *SQLiteDB) InsertLink(ctx context.Context, link *models.Link) (int64, error) {
	if link.Status == "" {
		link.Status = models.StatusPending
	}
	if link.AddedAt.IsZero() {
		link.AddedAt = time.Now().UTC()
	}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO links (parasha_id, target_kind, target_id, song_id, verse_ref, added_by,
			status, approval_token, approved_at, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		link.ParashaID,
		link.TargetKind,
		link.TargetID,
		link.SongID,
		link.VerseRef,
		link.AddedBy,
		link.Status,
		link.ApprovalToken,
		formatTimePtr(link.ApprovedAt),
		formatTime(link.AddedAt),
	).Scan(&link.ID)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return 0, ErrDuplicateToken
		}
		return 0, fmt.Errorf("inserting link: %w", err)
	}

	return link.ID, nil
}

// GetLinkByID retrieves a link by its ID.
func (s *SQLiteDB) GetLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	return scanSQLiteLink(s.db.QueryRowxContext(ctx, `
		SELECT `+sqliteLinkColumns+`
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.id = ?`, id))
}

// GetLinksByParasha retrieves parasha and haftarah links for a portion.
func (s *SQLiteDB) GetLinksByParasha(ctx context.Context, parashaID string, statuses ...string) ([]models.LinkWithSong, error) {
	query, args, err := sqlx.In(`
		SELECT `+sqliteLinkColumns+`
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.parasha_id = ?
			AND l.target_kind IN (?, ?)
			AND l.status IN (?)
		ORDER BY l.added_at DESC, l.id DESC`,
		parashaID, models.KindParasha, models.KindHaftarah, statusFilter(statuses))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying links for parasha %s: %w", parashaID, err)
	}
	return scanSQLiteLinks(rows)
}

// GetLinksByTanach retrieves links for a single Tanach chapter.
func (s *SQLiteDB) GetLinksByTanach(ctx context.Context, book string, chapter int, statuses ...string) ([]models.LinkWithSong, error) {
	key := models.TanachKey(book, chapter)
	query, args, err := sqlx.In(`
		SELECT `+sqliteLinkColumns+`
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.target_kind = ?
			AND l.target_id = ?
			AND l.status IN (?)
		ORDER BY l.added_at DESC, l.id DESC`,
		models.KindTanach, key, statusFilter(statuses))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying links for %s: %w", key, err)
	}
	return scanSQLiteLinks(rows)
}

// GetPendingLinks retrieves the moderation queue, oldest first.
func (s *SQLiteDB) GetPendingLinks(ctx context.Context) ([]models.LinkWithSong, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+sqliteLinkColumns+`
		FROM links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.status = ?
		ORDER BY l.added_at ASC, l.id ASC`, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("querying pending links: %w", err)
	}
	return scanSQLiteLinks(rows)
}

// CountPending returns the number of pending links.
func (s *SQLiteDB) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM links WHERE status = ?`, models.StatusPending)
	return count, err
}

// ApproveLinkByToken redeems a token with a single UPDATE ... RETURNING.
// SQLite runs one writer at a time, so a second redemption finds the token
// already cleared.
func (s *SQLiteDB) ApproveLinkByToken(ctx context.Context, token string) (*models.LinkWithSong, error) {
	return scanSQLiteLink(s.db.QueryRowxContext(ctx, `
		UPDATE links
		SET status = ?, approval_token = NULL, approved_at = COALESCE(approved_at, ?)
		WHERE approval_token = ? AND status = ?
		RETURNING `+sqliteReturning,
		models.StatusApproved,
		formatTime(time.Now()),
		token,
		models.StatusPending,
	))
}

// ApproveLinkByID approves a link unless it was rejected.
func (s *SQLiteDB) ApproveLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	link, err := scanSQLiteLink(s.db.QueryRowxContext(ctx, `
		UPDATE links
		SET status = ?, approval_token = NULL, approved_at = COALESCE(approved_at, ?)
		WHERE id = ? AND status <> ?
		RETURNING `+sqliteReturning,
		models.StatusApproved,
		formatTime(time.Now()),
		id,
		models.StatusRejected,
	))
	if errors.Is(err, ErrLinkNotFound) {
		if _, getErr := s.GetLinkByID(ctx, id); getErr == nil {
			return nil, ErrInvalidTransition
		}
	}
	return link, err
}

// RejectLinkByID rejects a link.
func (s *SQLiteDB) RejectLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error) {
	return scanSQLiteLink(s.db.QueryRowxContext(ctx, `
		UPDATE links
		SET status = ?, approval_token = NULL, approved_at = NULL
		WHERE id = ?
		RETURNING `+sqliteReturning,
		models.StatusRejected,
		id,
	))
}

// DeleteLink deletes a link by ID.
func (s *SQLiteDB) DeleteLink(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting link %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// GetTotalSongs counts distinct songs with at least one approved link.
func (s *SQLiteDB) GetTotalSongs(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(DISTINCT song_id) FROM links WHERE status = ?`, models.StatusApproved)
	return count, err
}
