package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"parashasongs/internal/models"
)

type fakeSource struct {
	songs   int64
	pending int64
	visits  models.VisitStats
	err     error
}

func (f *fakeSource) GetTotalSongs(context.Context) (int64, error) { return f.songs, f.err }
func (f *fakeSource) CountPending(context.Context) (int64, error)  { return f.pending, nil }
func (f *fakeSource) GetVisitStats(context.Context) (models.VisitStats, error) {
	return f.visits, nil
}

func TestStatsCollector(t *testing.T) {
	c := NewStatsCollector(&fakeSource{
		songs:   7,
		pending: 2,
		visits:  models.VisitStats{Total: 40, UniqueIPs: 12, Last24h: 5},
	})

	expected := `
# HELP parashasongs_approved_songs Distinct songs referenced by approved links
# TYPE parashasongs_approved_songs gauge
parashasongs_approved_songs 7
# HELP parashasongs_pending_links Links waiting for moderation
# TYPE parashasongs_pending_links gauge
parashasongs_pending_links 2
# HELP parashasongs_visits Recorded visits by window
# TYPE parashasongs_visits gauge
parashasongs_visits{window="24h"} 5
parashasongs_visits{window="all"} 40
parashasongs_visits{window="unique_ips"} 12
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestStatsCollectorSkipsFailedQuery(t *testing.T) {
	c := NewStatsCollector(&fakeSource{pending: 3, err: errors.New("db down")})

	if got := testutil.CollectAndCount(c, "parashasongs_approved_songs"); got != 0 {
		t.Errorf("approved songs count = %d, want 0", got)
	}
	if got := testutil.CollectAndCount(c, "parashasongs_pending_links"); got != 1 {
		t.Errorf("pending links count = %d, want 1", got)
	}
}

func TestRecordCounters(t *testing.T) {
	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("pending"))
	RecordSubmission("pending")
	RecordSubmission("pending")
	if got := testutil.ToFloat64(submissionsTotal.WithLabelValues("pending")); got != before+2 {
		t.Errorf("submissions = %v, want %v", got, before+2)
	}

	before = testutil.ToFloat64(notificationsTotal.WithLabelValues("smtp", "error"))
	RecordNotification("smtp", "error")
	if got := testutil.ToFloat64(notificationsTotal.WithLabelValues("smtp", "error")); got != before+1 {
		t.Errorf("notifications = %v, want %v", got, before+1)
	}
}

func TestInitRegistersOnce(t *testing.T) {
	src := &fakeSource{}
	Init(src)
	Init(src)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "parashasongs_pending_links" {
			found = true
		}
	}
	if !found {
		t.Error("expected collector on default registry")
	}
}
