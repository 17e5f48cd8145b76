package models

// Song is a song that links point at.
// Songs are unique by (Title, ExternalURL); a nil ExternalURL compares equal to "".
type Song struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Version     int     `json:"-"` // legacy column, always 0
	ExternalURL *string `json:"external_url,omitempty"`
}

// URL returns the external url or "" when absent.
func (s *Song) URL() string {
	if s.ExternalURL == nil {
		return ""
	}
	return *s.ExternalURL
}
