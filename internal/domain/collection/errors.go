package collection

import "errors"

var (
	// ErrCollectionNotFound indicates the collection doesn't exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists indicates a collection with that name already exists.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrInvalidInput indicates invalid collection input.
	ErrInvalidInput = errors.New("invalid collection input")
)
