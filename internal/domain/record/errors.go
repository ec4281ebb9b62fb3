package record

import "errors"

var (
	// ErrRecordNotFound indicates the record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists indicates a record with the requested ID already exists.
	ErrRecordExists = errors.New("record already exists")
	// ErrStoreFailure wraps backend failures (network, permission, validation).
	ErrStoreFailure = errors.New("record store failure")
	// ErrInvalidInput indicates invalid input for record operations.
	ErrInvalidInput = errors.New("invalid record input")
)
