// Package repository holds the errors every store backend returns, so the
// domain services can classify failures without knowing the driver.
package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrConflict means a conditional write found a different stored version.
	// Backends that can read the current row return a
	// record.VersionMismatchError, which matches it under errors.Is.
	ErrConflict = errors.New("conflict: stored version changed")

	ErrAlreadyExists = errors.New("already exists")

	// ErrForeignKeyViolation means the referenced collection does not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrInvalidInput means the value could not be encoded for storage.
	ErrInvalidInput = errors.New("invalid input")
)
