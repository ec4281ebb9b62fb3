// Package editor holds a caller's draft of one record and the conflict, if
// any, that blocks saving it. A conflict is kept in memory only and leaves
// the Conflicted state through Reload, ForceWrite or Dismiss.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/record"
)

// Store is the record service an editor reads and writes through. It is
// implemented by record.Service and by the HTTP client.
type Store interface {
	Get(ctx context.Context, tenantID, id string) (*record.Record, error)
	GuardedUpdate(ctx context.Context, tenantID string, req record.UpdateRequest) record.Outcome
	ForceUpdate(ctx context.Context, tenantID string, req record.ForceRequest) record.Outcome
}

// ActivityLogger records conflict resolutions.
type ActivityLogger interface {
	Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error
}

// Editor serializes operations on one draft. All methods are safe for
// concurrent use; a call waits for the one in flight.
type Editor struct {
	store     Store
	tenantID  string
	sessionID string
	logger    *slog.Logger
	activity  ActivityLogger
	base      record.Version

	mu       sync.Mutex
	draft    Draft
	conflict *record.ConflictInfo
}

// Option configures an Editor.
type Option func(*Editor)

// WithSession tags writes and activity with a session ID.
func WithSession(sessionID string) Option {
	return func(e *Editor) { e.sessionID = sessionID }
}

// WithLogger sets the editor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) { e.logger = logger }
}

// WithActivityLog logs conflict resolutions to the activity log.
func WithActivityLog(l ActivityLogger) Option {
	return func(e *Editor) { e.activity = l }
}

// WithBaseVersion makes the draft carry v instead of the loaded version, for
// callers whose edits are based on an earlier read.
func WithBaseVersion(v record.Version) Option {
	return func(e *Editor) { e.base = v }
}

// Open loads the record and returns a Clean editor for it.
func Open(ctx context.Context, store Store, tenantID, recordID string, opts ...Option) (*Editor, error) {
	e := &Editor{store: store, tenantID: tenantID}
	for _, opt := range opts {
		opt(e)
	}
	rec, err := store.Get(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	e.draft = draftOf(rec)
	if e.base != 0 {
		e.draft.Version = e.base
	}
	return e, nil
}

// State returns the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Editor) stateLocked() State {
	if e.conflict == nil {
		return Clean{}
	}
	return Conflicted{Info: e.conflict}
}

// Draft returns a copy of the local draft.
func (e *Editor) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.draft
	d.Fields = d.Fields.Clone()
	return d
}

// Save writes fields guarded by the draft's version. Success refreshes the
// draft, Conflict enters (or stays in) Conflicted with the newest info, and
// Failure leaves the state untouched.
func (e *Editor) Save(ctx context.Context, fields record.Fields, replace bool) record.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.store.GuardedUpdate(ctx, e.tenantID, record.UpdateRequest{
		SessionID: e.sessionID,
		ID:        e.draft.RecordID,
		Fields:    fields,
		Version:   e.draft.Version,
		Replace:   replace,
	})
	switch out.Kind() {
	case record.OutcomeSuccess:
		rec, _ := out.Record()
		e.draft = draftOf(rec)
	case record.OutcomeConflict:
		info, _ := out.Conflict()
		e.conflict = info
		e.debug(ctx, "save conflicted", "server_version", info.ServerVersion, "local_version", info.LocalVersion)
	}
	return out
}

// Reload replaces the draft with the stored record and clears any conflict.
// If the record is gone the state is left unchanged.
func (e *Editor) Reload(ctx context.Context) record.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.Get(ctx, e.tenantID, e.draft.RecordID)
	if err != nil {
		return record.Failed(err)
	}
	e.draft = draftOf(rec)
	e.resolveLocked(ctx, ResolutionReload, rec.Version)
	return record.Succeeded(rec)
}

// ForceWrite overwrites the stored record with fields. It is only valid while
// Conflicted; on failure the conflict is kept.
func (e *Editor) ForceWrite(ctx context.Context, fields record.Fields, replace bool) record.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conflict == nil {
		return record.Failed(ErrNotConflicted)
	}
	out := e.store.ForceUpdate(ctx, e.tenantID, record.ForceRequest{
		SessionID: e.sessionID,
		ID:        e.draft.RecordID,
		Fields:    fields,
		Replace:   replace,
	})
	if rec, ok := out.Record(); ok {
		e.draft = draftOf(rec)
		e.resolveLocked(ctx, ResolutionForce, rec.Version)
	}
	return out
}

// Dismiss drops the conflict without touching the store. The draft keeps its
// stale version, so the next Save conflicts again unless the record reverted.
func (e *Editor) Dismiss(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolveLocked(ctx, ResolutionDismiss, e.draft.Version)
}

// Resolve applies a named resolution. Fields and replace are used by force only.
func (e *Editor) Resolve(ctx context.Context, res Resolution, fields record.Fields, replace bool) (record.Outcome, error) {
	switch res {
	case ResolutionReload:
		return e.Reload(ctx), nil
	case ResolutionForce:
		if fields == nil {
			if info, ok := e.State().(Conflicted); ok {
				fields = info.Info.AttemptedFields
			}
		}
		return e.ForceWrite(ctx, fields, replace), nil
	case ResolutionDismiss:
		e.Dismiss(ctx)
		return record.Succeeded(e.snapshot()), nil
	}
	return record.Outcome{}, ErrUnknownResolution
}

func (e *Editor) snapshot() *record.Record {
	d := e.Draft()
	return &record.Record{
		ID:         d.RecordID,
		TenantID:   e.tenantID,
		Collection: d.Collection,
		Fields:     d.Fields,
		Version:    d.Version,
	}
}

func (e *Editor) resolveLocked(ctx context.Context, res Resolution, version record.Version) {
	info := e.conflict
	e.conflict = nil
	if info == nil {
		return
	}
	e.debug(ctx, "conflict resolved", "resolution", res)
	if e.activity == nil {
		return
	}

	details, _ := json.Marshal(map[string]any{
		"resolution":     res,
		"server_version": info.ServerVersion,
		"local_version":  info.LocalVersion,
	})
	recordID := e.draft.RecordID
	entry := &activity.ActivityEntry{
		Collection:   e.draft.Collection,
		RecordID:     &recordID,
		ActivityType: activity.TypeConflictResolved,
		Summary:      fmt.Sprintf("resolved conflict on record %s by %s", recordID, res),
		Details:      string(details),
		Version:      int64(version),
	}
	if e.sessionID != "" {
		sessionID := e.sessionID
		entry.SessionID = &sessionID
	}
	if err := e.activity.Log(ctx, e.tenantID, entry); err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "activity log failed", "record_id", recordID, "error", err)
	}
}

func (e *Editor) debug(ctx context.Context, msg string, args ...any) {
	if e.logger == nil {
		return
	}
	args = append([]any{"tenant_id", e.tenantID, "record_id", e.draft.RecordID}, args...)
	e.logger.DebugContext(ctx, msg, args...)
}
