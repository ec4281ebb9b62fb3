package editor

import "errors"

var (
	// ErrNotConflicted is returned by ForceWrite when there is no conflict to resolve.
	ErrNotConflicted = errors.New("no conflict to resolve")
	// ErrUnknownResolution indicates a resolution other than reload, force or dismiss.
	ErrUnknownResolution = errors.New("unknown conflict resolution")
	// ErrEditorNotOpen indicates no editor is open for the record in this session.
	ErrEditorNotOpen = errors.New("record is not open for editing")
)
