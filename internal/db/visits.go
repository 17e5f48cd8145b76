package db

import (
	"context"
	"time"

	"parashasongs/internal/models"
)

// RecordVisit appends a visit row.
func (d *PostgresDB) RecordVisit(ctx context.Context, visit *models.Visit) error {
	if visit.VisitedAt.IsZero() {
		visit.VisitedAt = time.Now().UTC()
	}
	return d.Pool.QueryRow(ctx,
		`INSERT INTO visits (ip, user_agent, visited_at) VALUES ($1, $2, $3) RETURNING id`,
		visit.IP, visit.UserAgent, visit.VisitedAt,
	).Scan(&visit.ID)
}

// GetVisitStats returns total, distinct-ip and last-24h visit counts.
func (d *PostgresDB) GetVisitStats(ctx context.Context) (models.VisitStats, error) {
	var stats models.VisitStats
	err := d.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(DISTINCT ip),
			COUNT(*) FILTER (WHERE visited_at >= $1)
		FROM visits
	`, time.Now().UTC().Add(-24*time.Hour)).Scan(&stats.Total, &stats.UniqueIPs, &stats.Last24h)
	return stats, err
}
