package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"parashasongs/internal/models"
)

var (
	approvedSongsDesc = prometheus.NewDesc(
		"parashasongs_approved_songs",
		"Distinct songs referenced by approved links",
		nil, nil,
	)
	pendingLinksDesc = prometheus.NewDesc(
		"parashasongs_pending_links",
		"Links waiting for moderation",
		nil, nil,
	)
	visitsDesc = prometheus.NewDesc(
		"parashasongs_visits",
		"Recorded visits by window",
		[]string{"window"},
		nil,
	)
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parashasongs_submissions_total",
			Help: "Link submissions by resulting status",
		},
		[]string{"status"},
	)
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parashasongs_notifications_total",
			Help: "Notification attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)

// StatsSource is the subset of the gateway read on each scrape.
type StatsSource interface {
	GetTotalSongs(ctx context.Context) (int64, error)
	CountPending(ctx context.Context) (int64, error)
	GetVisitStats(ctx context.Context) (models.VisitStats, error)
}

// StatsCollector is a custom Prometheus collector that reads moderation and
// visit counts from the database on each scrape.
type StatsCollector struct {
	source  StatsSource
	timeout time.Duration
}

// NewStatsCollector creates a collector over source.
func NewStatsCollector(source StatsSource) *StatsCollector {
	return &StatsCollector{source: source, timeout: 5 * time.Second}
}

// Describe sends the metric descriptors to the channel.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- approvedSongsDesc
	ch <- pendingLinksDesc
	ch <- visitsDesc
}

// Collect queries the database and emits gauges. A failed query skips only
// its own metric.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if total, err := c.source.GetTotalSongs(ctx); err != nil {
		slog.Error("failed to collect approved song count", "error", err)
	} else {
		ch <- prometheus.MustNewConstMetric(approvedSongsDesc, prometheus.GaugeValue, float64(total))
	}

	if pending, err := c.source.CountPending(ctx); err != nil {
		slog.Error("failed to collect pending link count", "error", err)
	} else {
		ch <- prometheus.MustNewConstMetric(pendingLinksDesc, prometheus.GaugeValue, float64(pending))
	}

	stats, err := c.source.GetVisitStats(ctx)
	if err != nil {
		slog.Error("failed to collect visit stats", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(visitsDesc, prometheus.GaugeValue, float64(stats.Total), "all")
	ch <- prometheus.MustNewConstMetric(visitsDesc, prometheus.GaugeValue, float64(stats.Last24h), "24h")
	ch <- prometheus.MustNewConstMetric(visitsDesc, prometheus.GaugeValue, float64(stats.UniqueIPs), "unique_ips")
}

var initOnce sync.Once

// Init registers the collector and counters with the default registry.
// Must be called once at startup.
func Init(source StatsSource) {
	initOnce.Do(func() {
		prometheus.MustRegister(NewStatsCollector(source), submissionsTotal, notificationsTotal)
	})
}

// RecordSubmission counts a created link by its initial status.
func RecordSubmission(status string) {
	submissionsTotal.WithLabelValues(status).Inc()
}

// RecordNotification counts one channel attempt.
func RecordNotification(channel, outcome string) {
	notificationsTotal.WithLabelValues(channel, outcome).Inc()
}
