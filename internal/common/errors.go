// Package common defines sentinel errors shared by the stores, the
// authorization guard and the HTTP handlers. Callers match them with
// errors.Is; stores wrap them with additional context.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already registered")

	// Authorization errors.
	ErrAuthRequired = errors.New("authentication required")
	ErrForbidden    = errors.New("forbidden")

	// Input errors.
	ErrValidation = errors.New("validation error")
)
