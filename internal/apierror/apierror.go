// Package apierror maps domain errors to the codes, messages and recovery
// hints returned by the REST API and the MCP tools.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
)

const (
	CodeRecordNotFound     = "RECORD_NOT_FOUND"
	CodeRecordExists       = "RECORD_EXISTS"
	CodeVersionConflict    = "VERSION_CONFLICT"
	CodeStoreFailure       = "STORE_FAILURE"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	CodeCollectionExists   = "COLLECTION_EXISTS"
	CodeNotConflicted      = "NOT_CONFLICTED"
	CodeEditorNotOpen      = "EDITOR_NOT_OPEN"
	CodeInternal           = "INTERNAL"
)

// APIError is the error body shared by REST and MCP responses.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	Status       int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Conflict builds the error for a version conflict carrying its info.
func Conflict(info *record.ConflictInfo) *APIError {
	return &APIError{
		Code:         CodeVersionConflict,
		Message:      "record was modified since it was loaded",
		Details:      info,
		RecoveryHint: "Reload to take the stored version, or force the write to overwrite it",
		Status:       http.StatusConflict,
	}
}

// Map converts err to an APIError. Unknown errors map to INTERNAL.
func Map(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, record.ErrRecordNotFound):
		return &APIError{Code: CodeRecordNotFound, Message: "record not found", RecoveryHint: "Check the ID; the record may have been deleted", Status: http.StatusNotFound}
	case errors.Is(err, record.ErrRecordExists):
		return &APIError{Code: CodeRecordExists, Message: "record already exists", RecoveryHint: "Choose another ID or omit it", Status: http.StatusConflict}
	case errors.Is(err, collection.ErrCollectionNotFound):
		return &APIError{Code: CodeCollectionNotFound, Message: "collection not found", RecoveryHint: "Create the collection first", Status: http.StatusNotFound}
	case errors.Is(err, collection.ErrCollectionExists):
		return &APIError{Code: CodeCollectionExists, Message: "collection already exists", Status: http.StatusConflict}
	case errors.Is(err, editor.ErrNotConflicted):
		return &APIError{Code: CodeNotConflicted, Message: "there is no conflict to resolve", RecoveryHint: "Save normally", Status: http.StatusConflict}
	case errors.Is(err, editor.ErrEditorNotOpen):
		return &APIError{Code: CodeEditorNotOpen, Message: "record is not open for editing", RecoveryHint: "Call open_record first", Status: http.StatusNotFound}
	case errors.Is(err, record.ErrInvalidInput),
		errors.Is(err, collection.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput),
		errors.Is(err, editor.ErrUnknownResolution):
		return &APIError{Code: CodeInvalidInput, Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, auth.ErrUnauthorized):
		return &APIError{Code: CodeUnauthorized, Message: "invalid or missing credentials", RecoveryHint: "Send a valid bearer token", Status: http.StatusUnauthorized}
	case errors.Is(err, record.ErrStoreFailure):
		return &APIError{Code: CodeStoreFailure, Message: err.Error(), RecoveryHint: "Retry later; the record was not changed", Status: http.StatusInternalServerError}
	default:
		return &APIError{Code: CodeInternal, Message: err.Error(), Status: http.StatusInternalServerError}
	}
}

// FromOutcome returns the error carried by a non-successful outcome.
func FromOutcome(out record.Outcome) *APIError {
	switch out.Kind() {
	case record.OutcomeSuccess:
		return nil
	case record.OutcomeConflict:
		info, _ := out.Conflict()
		return Conflict(info)
	default:
		return Map(out.Err())
	}
}
