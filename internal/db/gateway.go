package db

import (
	"context"
	"fmt"

	"parashasongs/internal/models"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultStatuses is the status filter applied to public read paths.
var DefaultStatuses = []string{models.StatusApproved}

// Gateway is the data-access contract shared by the SQLite and PostgreSQL backends.
// Both implementations must behave identically for every method.
type Gateway interface {
	// FindSongByIdentity returns the song with exactly this title and url.
	// A nil url matches a song stored without one. Returns ErrSongNotFound if absent.
	FindSongByIdentity(ctx context.Context, title string, url *string) (*models.Song, error)
	// InsertSong inserts a song; the caller supplies the id.
	InsertSong(ctx context.Context, song *models.Song) error
	// DeleteSong deletes a song and every link referencing it.
	DeleteSong(ctx context.Context, id string) error

	// InsertLink inserts a link and returns its generated id.
	// Empty status defaults to pending.
	InsertLink(ctx context.Context, link *models.Link) (int64, error)
	// GetLinkByID returns a link joined with its song.
	GetLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error)
	// GetLinksByParasha returns parasha and haftarah links for a portion, newest first.
	// With no statuses given, DefaultStatuses is used.
	GetLinksByParasha(ctx context.Context, parashaID string, statuses ...string) ([]models.LinkWithSong, error)
	// GetLinksByTanach returns links for a Tanach chapter, newest first.
	// With no statuses given, DefaultStatuses is used.
	GetLinksByTanach(ctx context.Context, book string, chapter int, statuses ...string) ([]models.LinkWithSong, error)
	// GetPendingLinks returns the moderation queue, oldest first.
	GetPendingLinks(ctx context.Context) ([]models.LinkWithSong, error)
	// CountPending returns the size of the moderation queue.
	CountPending(ctx context.Context) (int64, error)
	// ApproveLinkByToken redeems an approval token in one atomic statement.
	// Returns ErrLinkNotFound if no link holds the token.
	ApproveLinkByToken(ctx context.Context, token string) (*models.LinkWithSong, error)
	// ApproveLinkByID approves a pending or approved link.
	// Returns ErrLinkNotFound or ErrInvalidTransition for rejected links.
	ApproveLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error)
	// RejectLinkByID rejects a link, clearing its token and approval time.
	RejectLinkByID(ctx context.Context, id int64) (*models.LinkWithSong, error)
	// DeleteLink hard-deletes a link.
	DeleteLink(ctx context.Context, id int64) error

	// GetTotalSongs counts distinct songs referenced by approved links.
	GetTotalSongs(ctx context.Context) (int64, error)

	// RecordVisit appends a visit.
	RecordVisit(ctx context.Context, visit *models.Visit) error
	// GetVisitStats returns aggregate visit counts.
	GetVisitStats(ctx context.Context) (models.VisitStats, error)

	// Migrate brings the schema up to date. It is idempotent.
	Migrate(ctx context.Context) error
	// Driver names the backend, DriverSQLite or DriverPostgres.
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// Open connects to the configured backend and runs its migrations.
func Open(ctx context.Context, opts Options) (Gateway, error) {
	var (
		gw  Gateway
		err error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		gw, err = NewSQLite(ctx, opts.SQLitePath)
	case DriverPostgres:
		gw, err = NewPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := gw.Migrate(ctx); err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return gw, nil
}

// statusFilter returns the statuses to filter on, applying the default.
func statusFilter(statuses []string) []string {
	if len(statuses) == 0 {
		return DefaultStatuses
	}
	return statuses
}

// identityURL returns the comparison value for a song url.
func identityURL(url *string) string {
	if url == nil {
		return ""
	}
	return *url
}
