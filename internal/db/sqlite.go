package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ Gateway = (*SQLiteDB)(nil)

// SQLiteDB is the embedded Gateway backed by a single SQLite file.
//
// The pool is capped at one connection: SQLite executes one writer at a
// time and every statement here is atomic on its own.
type SQLiteDB struct {
	db *sqlx.DB
}

// sqlitePragmas are applied by the driver to every new connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// sqliteDSN builds a modernc URI carrying sqlitePragmas.
func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// NewSQLite opens (or creates) a SQLite database at path with WAL mode,
// foreign keys and a busy timeout. Use ":memory:" for a throwaway database.
func NewSQLite(ctx context.Context, path string) (*SQLiteDB, error) {
	if path == "" {
		path = "parashasongs.db"
	}

	db, err := sqlx.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite db: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Driver returns DriverSQLite.
func (s *SQLiteDB) Driver() string {
	return DriverSQLite
}

// Ping checks database connectivity.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// sqliteMigration holds a single schema migration. Columns are added before
// sql runs, and only if the table does not have them yet.
type sqliteMigration struct {
	version int
	columns []sqliteColumn
	sql     string
}

type sqliteColumn struct {
	table string
	name  string
	decl  string
}

// sqliteMigrations is the ordered list of schema migrations.
// Versions must be sequential starting from 1.
var sqliteMigrations = []sqliteMigration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS songs (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	version      INTEGER NOT NULL DEFAULT 0,
	external_url TEXT
);

CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title);

CREATE TABLE IF NOT EXISTS links (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	parasha_id  TEXT NOT NULL,
	target_kind TEXT NOT NULL DEFAULT 'parasha',
	target_id   TEXT,
	song_id     TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	verse_ref   TEXT,
	added_by    TEXT,
	added_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_links_parasha_id ON links(parasha_id);
CREATE INDEX IF NOT EXISTS idx_links_song_id ON links(song_id);

CREATE TABLE IF NOT EXISTS visits (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ip         TEXT,
	user_agent TEXT,
	visited_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_visits_visited_at ON visits(visited_at);
`,
	},
	{
		version: 2,
		columns: []sqliteColumn{
			{"links", "target_kind", "TEXT NOT NULL DEFAULT 'parasha'"},
			{"links", "target_id", "TEXT"},
			{"links", "status", "TEXT"},
			{"links", "approval_token", "TEXT"},
			{"links", "approved_at", "DATETIME"},
		},
		sql: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_links_approval_token
	ON links(approval_token)
	WHERE approval_token IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_links_status_added_at ON links(status, added_at);
CREATE INDEX IF NOT EXISTS idx_links_target_id ON links(target_id);
`,
	},
	{
		version: 3,
		sql: `
UPDATE links
SET status = 'approved',
	approved_at = COALESCE(approved_at, added_at)
WHERE status IS NULL
	OR status NOT IN ('pending', 'approved', 'rejected')
	OR (status = 'pending' AND approval_token IS NULL);

UPDATE links SET target_kind = 'parasha' WHERE target_kind IS NULL OR target_kind = '';
`,
	},
	{
		// Legacy rows carry CURRENT_TIMESTAMP text ("2006-01-02 15:04:05"),
		// which sorts before timeLayout on the same day.
		version: 4,
		sql: `
UPDATE links
SET added_at = strftime('%Y-%m-%dT%H:%M:%S.000000000Z', added_at)
WHERE typeof(added_at) = 'text' AND added_at NOT LIKE '%T%'
	AND strftime('%Y-%m-%dT%H:%M:%S.000000000Z', added_at) IS NOT NULL;

UPDATE links
SET approved_at = strftime('%Y-%m-%dT%H:%M:%S.000000000Z', approved_at)
WHERE typeof(approved_at) = 'text' AND approved_at NOT LIKE '%T%'
	AND strftime('%Y-%m-%dT%H:%M:%S.000000000Z', approved_at) IS NOT NULL;

UPDATE visits
SET visited_at = strftime('%Y-%m-%dT%H:%M:%S.000000000Z', visited_at)
WHERE typeof(visited_at) = 'text' AND visited_at NOT LIKE '%T%'
	AND strftime('%Y-%m-%dT%H:%M:%S.000000000Z', visited_at) IS NOT NULL;
`,
	},
}

// Migrate checks the current schema version and applies any outstanding
// migrations in order, each in its own transaction.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
	); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := s.db.GetContext(ctx, &current,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`,
	); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteDB) apply(ctx context.Context, m sqliteMigration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range m.columns {
		exists, err := columnExists(ctx, tx, c.table, c.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.decl)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", c.table, c.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
		return err
	}

	return tx.Commit()
}

func columnExists(ctx context.Context, tx *sqlx.Tx, table, column string) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if err != nil {
		return false, fmt.Errorf("inspecting %s columns: %w", table, err)
	}
	return count > 0, nil
}

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime renders t for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatTimePtr renders an optional time for storage.
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// sqliteTime scans DATETIME columns written by this package, by SQLite's
// CURRENT_TIMESTAMP default, or already converted by the driver.
type sqliteTime struct {
	Time  time.Time
	Valid bool
}

var sqliteTimeLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Scan implements sql.Scanner.
func (t *sqliteTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = x.UTC(), true
		return nil
	case int64:
		t.Time, t.Valid = time.Unix(x, 0).UTC(), true
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	}
	return fmt.Errorf("unsupported time value %T", v)
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time, t.Valid = time.Unix(unix, 0).UTC(), true
		return nil
	}
	return fmt.Errorf("unparseable time %q", s)
}

// Ptr returns nil for NULL values.
func (t sqliteTime) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// isSQLiteUniqueViolation reports whether err is a UNIQUE constraint failure.
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
