package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeRecordCreated     ActivityType = "record_created"
	TypeRecordUpdated     ActivityType = "record_updated"
	TypeRecordOverwritten ActivityType = "record_overwritten"
	TypeRecordDeleted     ActivityType = "record_deleted"
	TypeConflictDetected  ActivityType = "conflict_detected"
	TypeConflictResolved  ActivityType = "conflict_resolved"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeRecordCreated, TypeRecordUpdated, TypeRecordOverwritten,
		TypeRecordDeleted, TypeConflictDetected, TypeConflictResolved:
		return true
	}
	return false
}

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Collection   string       `json:"collection"`
	SessionID    *string      `json:"session_id,omitempty"`
	RecordID     *string      `json:"record_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
	Version      int64        `json:"version"`
}
