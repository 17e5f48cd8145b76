package visits

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parashasongs/internal/models"
	"parashasongs/internal/testutil"
)

func TestCounter(t *testing.T) {
	c := NewCounter(testutil.SQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, "10.0.0.1", "curl/8"))
	require.NoError(t, c.Record(ctx, "10.0.0.1", "curl/8"))
	require.NoError(t, c.Record(ctx, "10.0.0.2", strings.Repeat("x", 2000)))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.UniqueIPs)
	assert.EqualValues(t, 3, stats.Last24h)
}

type recordingStore struct {
	visits []models.Visit
}

func (r *recordingStore) RecordVisit(_ context.Context, v *models.Visit) error {
	r.visits = append(r.visits, *v)
	return nil
}

func (r *recordingStore) GetVisitStats(context.Context) (models.VisitStats, error) {
	return models.VisitStats{Total: int64(len(r.visits))}, nil
}

func TestCounterTruncatesUserAgentByRune(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"short untouched", "Mozilla/5.0", "Mozilla/5.0"},
		{"multi-byte rune at the cut", strings.Repeat("a", 499) + "é" + "tail", strings.Repeat("a", 499) + "é"},
		{"all multi-byte", strings.Repeat("ש", 600), strings.Repeat("ש", 500)},
		{"invalid bytes dropped", "curl\xff/8", "curl/8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{}
			c := NewCounter(store)
			require.NoError(t, c.Record(context.Background(), "10.0.0.1", tt.ua))

			require.Len(t, store.visits, 1)
			got := store.visits[0].UserAgent
			assert.True(t, utf8.ValidString(got))
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), maxUserAgentLength)
		})
	}
}
