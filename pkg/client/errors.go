package client

import (
	"errors"
	"fmt"

	"github.com/obelixia/reclock/internal/apierror"
	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/record"
)

var (
	// ErrUnreachable indicates the server could not be reached. It always
	// arrives wrapped in record.ErrStoreFailure.
	ErrUnreachable = errors.New("server unreachable")
	// ErrInvalidResponse indicates a response body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response")
)

// Error is an error body returned by the server.
type Error struct {
	Status       int
	Code         string
	Message      string
	RecoveryHint string
	details      []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Unwrap maps the error code back to the domain sentinel, so callers can use
// errors.Is(err, record.ErrRecordNotFound) against a remote store.
func (e *Error) Unwrap() error {
	switch e.Code {
	case apierror.CodeRecordNotFound:
		return record.ErrRecordNotFound
	case apierror.CodeRecordExists:
		return record.ErrRecordExists
	case apierror.CodeInvalidInput:
		return record.ErrInvalidInput
	case apierror.CodeUnauthorized:
		return auth.ErrUnauthorized
	case apierror.CodeCollectionNotFound:
		return collection.ErrCollectionNotFound
	case apierror.CodeCollectionExists:
		return collection.ErrCollectionExists
	default:
		return record.ErrStoreFailure
	}
}
