package model

import "errors"

var (
	// ErrCaseNotFound is returned for a case id missing from the catalog.
	ErrCaseNotFound = errors.New("case not found")

	// ErrInvalidPayload wraps the validation error of a rejected unbox payload.
	ErrInvalidPayload = errors.New("invalid unbox payload")
)
