package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field length limits.
const (
	MaxTitleLength    = 200
	MaxURLLength      = 500
	MaxVerseRefLength = 100
	MaxAddedByLength  = 100
)

// Validation errors.
var (
	ErrTitleRequired = errors.New("title is required")
	ErrURLTooLong    = errors.New("URL is too long")
	ErrURLScheme     = errors.New("URL must use http:// or https:// scheme")
	ErrURLHost       = errors.New("URL must have a valid host")
	ErrURLFormat     = errors.New("invalid URL format")
)

// IDPattern defines the valid format for parasha, haftarah and book ids.
var IDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidateID checks if a reference id matches the allowed pattern.
func ValidateID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	return IDPattern.MatchString(id)
}

// SanitizeTitle trims a song title, strips angle brackets and control
// characters, and truncates it to MaxTitleLength runes.
func SanitizeTitle(title string) (string, error) {
	title = truncate(strings.TrimSpace(stripUnsafe(title)), MaxTitleLength)
	if title == "" {
		return "", ErrTitleRequired
	}
	return title, nil
}

// SanitizeText cleans an optional free-text field. Empty input yields nil.
func SanitizeText(s string, max int) *string {
	s = truncate(strings.TrimSpace(stripUnsafe(s)), max)
	if s == "" {
		return nil
	}
	return &s
}

// CanonicalURL validates an external song URL and returns it with a
// lower-case scheme and host and no fragment. Empty input yields nil.
func CanonicalURL(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if len(raw) > MaxURLLength {
		return nil, ErrURLTooLong
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrURLFormat
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrURLScheme
	}
	if u.Host == "" {
		return nil, ErrURLHost
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	s := u.String()
	if len(s) > MaxURLLength {
		return nil, ErrURLTooLong
	}
	return &s, nil
}

func stripUnsafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Truncate cuts s to at most max runes, never splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func truncate(s string, max int) string {
	return strings.TrimSpace(Truncate(s, max))
}
