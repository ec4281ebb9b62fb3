package record

import (
	"encoding/json"
	"errors"
)

// OutcomeKind discriminates the result of an update attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeConflict
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is exactly one of Success(record), Conflict(info) or Failure(err).
// The zero value is not a valid outcome; use the constructors.
type Outcome struct {
	kind     OutcomeKind
	record   *Record
	conflict *ConflictInfo
	err      error
}

// Succeeded wraps a committed record.
func Succeeded(rec *Record) Outcome {
	return Outcome{kind: OutcomeSuccess, record: rec}
}

// Conflicted wraps a detected version conflict.
func Conflicted(info *ConflictInfo) Outcome {
	return Outcome{kind: OutcomeConflict, conflict: info}
}

// Failed wraps a NotFound or store failure.
func Failed(err error) Outcome {
	if err == nil {
		err = ErrStoreFailure
	}
	return Outcome{kind: OutcomeFailure, err: err}
}

func (o Outcome) Kind() OutcomeKind { return o.kind }

// Record returns the committed record of a successful outcome.
func (o Outcome) Record() (*Record, bool) {
	return o.record, o.kind == OutcomeSuccess
}

// Conflict returns the conflict of a conflicted outcome.
func (o Outcome) Conflict() (*ConflictInfo, bool) {
	return o.conflict, o.kind == OutcomeConflict
}

// Err returns the failure cause, or nil for success and conflict.
func (o Outcome) Err() error {
	return o.err
}

// NotFound reports whether the outcome failed because the record is missing.
func (o Outcome) NotFound() bool {
	return o.kind == OutcomeFailure && errors.Is(o.err, ErrRecordNotFound)
}

type outcomeJSON struct {
	Status   string        `json:"status"`
	Record   *Record       `json:"record,omitempty"`
	Conflict *ConflictInfo `json:"conflict,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{Status: o.kind.String(), Record: o.record, Conflict: o.conflict}
	if o.err != nil {
		out.Error = o.err.Error()
	}
	return json.Marshal(out)
}
