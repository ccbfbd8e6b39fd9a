package repository

import "errors"

var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness or claim race was lost.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the row exists but its status forbids the operation.
	ErrInvalidState = errors.New("invalid state for operation")
)
