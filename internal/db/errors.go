package db

import "errors"

// Domain-level database error sentinels.
var (
	// Link errors
	ErrLinkNotFound      = errors.New("link not found")
	ErrInvalidTransition = errors.New("link cannot move to the requested status")
	ErrDuplicateToken    = errors.New("approval token already in use")

	// Song errors
	ErrSongNotFound = errors.New("song not found")

	// Configuration errors
	ErrUnknownDriver = errors.New("unknown database driver")
)
