package storage

import "errors"

// Storage errors for the decision history store.
var (
	// ErrNotFound is returned when a requested decision does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when appending a decision whose id already
	// exists. History is append-only and never updated in place.
	ErrDuplicateKey = errors.New("duplicate key: history is append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingGateResult is returned when appending a decision that was
	// never gated. History must never contain an ungated decision.
	ErrMissingGateResult = errors.New("decision has no safety gate result")
)
