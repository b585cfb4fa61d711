package domain

import "errors"

// Every failure returned by the engine wraps exactly one of these.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStore      = errors.New("store unavailable")
	ErrForbidden  = errors.New("forbidden")
)
