package moderation

import "errors"

// Submission validation errors.
var (
	ErrUnknownParasha  = errors.New("unknown parasha")
	ErrUnknownHaftarah = errors.New("haftarah does not belong to parasha")
	ErrInvalidTarget   = errors.New("invalid link target")
	ErrInvalidInput    = errors.New("invalid submission")
)

// IsValidation reports whether err is a submission validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownParasha) ||
		errors.Is(err, ErrUnknownHaftarah) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrInvalidInput)
}
