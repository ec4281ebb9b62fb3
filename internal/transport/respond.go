package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/obelixia/reclock/internal/apierror"
	"github.com/obelixia/reclock/internal/domain/record"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error *apierror.APIError `json:"error"`
}

// CheckResponse is the body returned by the version check endpoint.
type CheckResponse struct {
	Status   string               `json:"status"`
	Conflict *record.ConflictInfo `json:"conflict,omitempty"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", record.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, apiErr *apierror.APIError) {
	status := apiErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ErrorResponse{Error: apiErr})
}

func writeOutcome(w http.ResponseWriter, out record.Outcome) {
	if rec, ok := out.Record(); ok {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeError(w, apierror.FromOutcome(out))
}

var (
	errMissingVersion = fmt.Errorf("%w: version is required", record.ErrInvalidInput)
	errBadQuery       = fmt.Errorf("%w: limit and offset must be non-negative integers", record.ErrInvalidInput)
)
