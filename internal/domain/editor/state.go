package editor

import "github.com/obelixia/reclock/internal/domain/record"

// State is either Clean or Conflicted.
type State interface {
	isState()
	Name() string
}

// Clean means no unresolved conflict is held.
type Clean struct{}

// Conflicted holds the conflict awaiting a reload, force write or dismiss.
// Info is never nil.
type Conflicted struct {
	Info *record.ConflictInfo
}

func (Clean) isState()      {}
func (Conflicted) isState() {}

func (Clean) Name() string      { return "clean" }
func (Conflicted) Name() string { return "conflicted" }

// Draft is the caller's local copy of a record.
type Draft struct {
	RecordID   string         `json:"record_id"`
	Collection string         `json:"collection"`
	Fields     record.Fields  `json:"fields"`
	Version    record.Version `json:"version"`
}

func draftOf(rec *record.Record) Draft {
	return Draft{
		RecordID:   rec.ID,
		Collection: rec.Collection,
		Fields:     rec.Fields.Clone(),
		Version:    rec.Version,
	}
}

// Resolution names how a conflict left the Conflicted state.
type Resolution string

const (
	ResolutionReload  Resolution = "reload"
	ResolutionForce   Resolution = "force"
	ResolutionDismiss Resolution = "dismiss"
)

// ParseResolution validates a resolution name.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolutionReload, ResolutionForce, ResolutionDismiss:
		return r, nil
	}
	return "", ErrUnknownResolution
}
