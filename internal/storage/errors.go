package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a unique key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadySubmitted is returned when a payment already has a score.
	ErrAlreadySubmitted = errors.New("score already submitted for payment")

	// ErrFinalized is returned when an update would rewrite a paid record
	// or a leg that was already sent.
	ErrFinalized = errors.New("record already finalized")
)
