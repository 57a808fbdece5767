package domain

import "errors"

var (
	// ErrNotFound covers both missing rows and rows owned by another workspace.
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)
