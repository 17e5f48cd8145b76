package models

import "time"

// Visit is a single recorded page visit.
type Visit struct {
	ID        int64     `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	VisitedAt time.Time `json:"visited_at"`
}

// VisitStats holds aggregate visit counts.
type VisitStats struct {
	Total     int64 `json:"total"`
	UniqueIPs int64 `json:"unique_ips"`
	Last24h   int64 `json:"last_24h"`
}
