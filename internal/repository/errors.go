package repository

import "errors"

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyDecided is returned when a decision is recorded against
	// an approval that is no longer pending
	ErrAlreadyDecided = errors.New("approval already decided")
)
