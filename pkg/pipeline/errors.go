package pipeline

import "errors"

var (
	// ErrNotFound is returned for an unknown document id on any read, update
	// or delete.
	ErrNotFound = errors.New("document not found")
	// ErrValidation marks bad intake input; it always surfaces before a
	// record exists.
	ErrValidation = errors.New("invalid request")
)
