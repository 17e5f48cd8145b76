// Package visits records page visits and reports aggregate counts.
package visits

import (
	"context"
	"strings"

	"parashasongs/internal/models"
	"parashasongs/internal/validation"
)

// Store is the part of the gateway the counter needs.
type Store interface {
	RecordVisit(ctx context.Context, visit *models.Visit) error
	GetVisitStats(ctx context.Context) (models.VisitStats, error)
}

// Counter appends visits and aggregates them.
type Counter struct {
	store Store
}

// NewCounter creates a counter over store.
func NewCounter(store Store) *Counter {
	return &Counter{store: store}
}

// maxUserAgentLength bounds stored user agents.
const maxUserAgentLength = 500

// Record appends a visit. The user agent is cut to maxUserAgentLength runes.
func (c *Counter) Record(ctx context.Context, ip, userAgent string) error {
	userAgent = validation.Truncate(strings.ToValidUTF8(userAgent, ""), maxUserAgentLength)
	return c.store.RecordVisit(ctx, &models.Visit{IP: ip, UserAgent: userAgent})
}

// Stats returns total, distinct-ip and last-24h counts.
func (c *Counter) Stats(ctx context.Context) (models.VisitStats, error) {
	return c.store.GetVisitStats(ctx)
}
