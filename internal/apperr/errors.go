package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidPath   = errors.New("invalid path")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrForbidden     = errors.New("forbidden")
	// ErrVerification is returned when a filesystem step reported no error
	// but the expected entry is not observable afterwards.
	ErrVerification = errors.New("verification failed")
)
