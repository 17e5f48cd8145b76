// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"parashasongs/internal/db"
	"parashasongs/internal/models"
)

// SQLiteDB creates a migrated SQLite database in a temporary directory.
func SQLiteDB(t *testing.T) *db.SQLiteDB {
	t.Helper()
	ctx := context.Background()

	database, err := db.NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

// PostgresDB connects to TEST_DATABASE_URL, or starts a throwaway container
// when RUN_INTEGRATION_TESTS is set. Otherwise the test is skipped.
func PostgresDB(t *testing.T) *db.PostgresDB {
	t.Helper()
	ctx := context.Background()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		if os.Getenv("RUN_INTEGRATION_TESTS") == "" {
			t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
		}
		connString = startPostgres(t)
	}

	database, err := db.NewPostgres(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanupTestData(ctx, database)
	t.Cleanup(func() {
		cleanupTestData(ctx, database)
		database.Close()
	})
	return database
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("parashasongs_test"),
		postgres.WithUsername("parashasongs"),
		postgres.WithPassword("parashasongs"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return connString
}

// cleanupTestData removes all test data from the database.
func cleanupTestData(ctx context.Context, database *db.PostgresDB) {
	// Delete in order to respect foreign keys
	database.Pool.Exec(ctx, "DELETE FROM links")
	database.Pool.Exec(ctx, "DELETE FROM songs")
	database.Pool.Exec(ctx, "DELETE FROM visits")
}

// Backends returns a constructor per available backend, keyed by driver name.
// SQLite is always present; PostgreSQL skips the subtest when unavailable.
func Backends() map[string]func(t *testing.T) db.Gateway {
	return map[string]func(t *testing.T) db.Gateway{
		db.DriverSQLite:   func(t *testing.T) db.Gateway { return SQLiteDB(t) },
		db.DriverPostgres: func(t *testing.T) db.Gateway { return PostgresDB(t) },
	}
}

// CreateTestSong inserts a song and returns it.
func CreateTestSong(t *testing.T, gw db.Gateway, id, title string, url *string) *models.Song {
	t.Helper()

	song := &models.Song{ID: id, Title: title, ExternalURL: url}
	if err := gw.InsertSong(context.Background(), song); err != nil {
		t.Fatalf("failed to create test song: %v", err)
	}
	return song
}

// CreateTestLink inserts a parasha link with the given status and token.
func CreateTestLink(t *testing.T, gw db.Gateway, songID, parashaID, status string, token *string) int64 {
	t.Helper()

	target := models.ParashaTarget(parashaID)
	parasha, targetID := target.Columns()
	link := &models.Link{
		TargetKind:    target.Kind,
		ParashaID:     parasha,
		TargetID:      targetID,
		SongID:        songID,
		Status:        status,
		ApprovalToken: token,
	}
	if status == models.StatusApproved {
		now := time.Now().UTC()
		link.ApprovedAt = &now
	}

	id, err := gw.InsertLink(context.Background(), link)
	if err != nil {
		t.Fatalf("failed to create test link: %v", err)
	}
	return id
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
