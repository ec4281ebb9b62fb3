package activity

// ListActivityOptions filters an activity listing. Nil and zero fields match
// everything.
type ListActivityOptions struct {
	Collection   string
	RecordID     *string
	SessionID    *string
	ActivityType *ActivityType
	// SinceVersion keeps entries stamped with a later record version, such
	// as the writes a caller missed after loading that version.
	SinceVersion int64
	Limit        int
	Offset       int
}
