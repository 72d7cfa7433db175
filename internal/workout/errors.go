package workout

import "errors"

var (
	// ErrNotFound is returned when a session, template, exercise, exercise index or set index does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned for mutations the session's current state does not allow.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation is returned for malformed input such as non-positive weights or out of range ratings.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a session changed between read and write.
	ErrConflict = errors.New("concurrent modification")
)
