package record

import (
	"fmt"

	"github.com/obelixia/reclock/internal/repository"
)

// ConflictInfo describes a conflict detected before or during an update.
type ConflictInfo struct {
	RecordID        string  `json:"record_id"`
	AttemptedFields Fields  `json:"attempted_fields,omitempty"`
	CurrentFields   Fields  `json:"current_fields"`
	ServerVersion   Version `json:"server_version"`
	LocalVersion    Version `json:"local_version"`
	Message         string  `json:"message"`
}

func newConflictInfo(current *Record, attempted Fields, localVersion Version) *ConflictInfo {
	return &ConflictInfo{
		RecordID:        current.ID,
		AttemptedFields: attempted.Clone(),
		CurrentFields:   current.Fields.Clone(),
		ServerVersion:   current.Version,
		LocalVersion:    localVersion,
		Message:         "record modified since it was loaded",
	}
}

// VersionMismatchError is returned by stores when a conditional write finds a
// different version. Current is the stored record at that moment.
type VersionMismatchError struct {
	Current *Record
}

func (e *VersionMismatchError) Error() string {
	if e.Current == nil {
		return repository.ErrConflict.Error()
	}
	return fmt.Sprintf("%s: record %s is at version %s", repository.ErrConflict, e.Current.ID, e.Current.Version)
}

// Is makes errors.Is(err, repository.ErrConflict) hold.
func (e *VersionMismatchError) Is(target error) bool {
	return target == repository.ErrConflict
}
