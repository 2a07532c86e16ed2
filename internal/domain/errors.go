package domain

import "errors"

// Sentinel errors shared by every layer. Stores wrap them with %w, handlers map
// them to HTTP statuses with errors.Is.
var (
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("media too large")
	ErrTransient       = errors.New("storage unavailable")
	ErrValidation      = errors.New("validation error")
)
