package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/obelixia/reclock/internal/apierror"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
)

type tools struct {
	services Services
	editors  *editor.Registry
	logger   *slog.Logger
}

// toolError is returned from tool handlers so the client receives the
// APIError as JSON text in an error result.
type toolError struct {
	apiErr *apierror.APIError
}

func (e *toolError) Error() string {
	data, err := json.Marshal(e.apiErr)
	if err != nil {
		return e.apiErr.Error()
	}
	return string(data)
}

func (e *toolError) Unwrap() error { return e.apiErr }

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var te *toolError
	if errors.As(err, &te) {
		return te
	}
	return &toolError{apiErr: apierror.Map(err)}
}

func (t *tools) register(server *sdkmcp.Server) {
	// Collections
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_collection",
		Description: "Create a collection to group records of one kind (companies, deals, ...)",
	}, t.createCollection)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_collections",
		Description: "List collections for the current tenant with their record counts",
	}, t.listCollections)

	// Records
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_record",
		Description: "Create a record; the returned version is the token for later guarded updates",
	}, t.createRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_record",
		Description: "Get a record with its fields and current version",
	}, t.getRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_records",
		Description: "List record references, newest first, optionally within one collection",
	}, t.listRecords)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_record",
		Description: "Delete a record",
	}, t.deleteRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "check_version",
		Description: "Check whether a version is still current without writing anything",
	}, t.checkVersion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_record",
		Description: "Write fields only if the record has not changed since the given version; returns status conflict with the stored fields otherwise",
	}, t.updateRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "force_update_record",
		Description: "Overwrite a record without a version check. Only use after the user has seen the conflict and chosen to overwrite",
	}, t.forceUpdateRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_recent_activity",
		Description: "Get recent writes and conflicts, optionally filtered by collection, record, session or type",
	}, t.getRecentActivity)

	// Editing
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "open_record",
		Description: "Open a record for editing in this session; the draft remembers the version it was loaded at",
	}, t.openRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "save_record",
		Description: "Save fields from the open draft; a stale draft moves the editor to the conflicted state",
	}, t.saveRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_edit_state",
		Description: "Get the draft and any unresolved conflict of an open record",
	}, t.getEditState)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "resolve_conflict",
		Description: "Resolve a conflict: reload takes the stored record, force overwrites it, dismiss keeps the stale draft",
	}, t.resolveConflict)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "close_record",
		Description: "Close an open record and drop its draft and conflict",
	}, t.closeRecord)
}

type CreateCollectionParams struct {
	ID          string `json:"id,omitempty" jsonschema:"collection ID, generated when omitted"`
	Name        string `json:"name" jsonschema:"lowercase name such as companies"`
	Description string `json:"description,omitempty"`
}

type CollectionResult struct {
	Collection *collection.Collection `json:"collection"`
}

type ListCollectionsParams struct{}

type ListCollectionsResult struct {
	Collections []collection.CollectionSummary `json:"collections"`
}

type CreateRecordParams struct {
	ID         string        `json:"id,omitempty" jsonschema:"record ID, generated when omitted"`
	Collection string        `json:"collection,omitempty" jsonschema:"collection name, the default collection when omitted"`
	Fields     record.Fields `json:"fields" jsonschema:"record fields"`
}

type RecordIDParams struct {
	ID string `json:"id" jsonschema:"record ID"`
}

type RecordResult struct {
	Record *record.Record `json:"record"`
}

type ListRecordsParams struct {
	Collection string `json:"collection,omitempty"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
	Offset     int    `json:"offset,omitempty"`
}

type ListRecordsResult struct {
	Records []record.RecordRef `json:"records"`
}

type DeleteRecordResult struct {
	Deleted bool `json:"deleted"`
}

type CheckVersionParams struct {
	ID      string         `json:"id" jsonschema:"record ID"`
	Version record.Version `json:"version" jsonschema:"version the caller loaded"`
	Fields  record.Fields  `json:"fields,omitempty" jsonschema:"fields the caller intends to write"`
}

type CheckVersionResult struct {
	Status   string               `json:"status" jsonschema:"ok or conflict"`
	Conflict *record.ConflictInfo `json:"conflict,omitempty"`
}

type UpdateRecordParams struct {
	ID      string         `json:"id" jsonschema:"record ID"`
	Fields  record.Fields  `json:"fields" jsonschema:"fields to write"`
	Version record.Version `json:"version" jsonschema:"version the caller loaded"`
	Replace bool           `json:"replace,omitempty" jsonschema:"replace all fields instead of merging"`
}

type ForceUpdateRecordParams struct {
	ID      string        `json:"id" jsonschema:"record ID"`
	Fields  record.Fields `json:"fields" jsonschema:"fields to write"`
	Replace bool          `json:"replace,omitempty" jsonschema:"replace all fields instead of merging"`
}

type UpdateRecordResult struct {
	Status   string               `json:"status" jsonschema:"success or conflict"`
	Record   *record.Record       `json:"record,omitempty"`
	Conflict *record.ConflictInfo `json:"conflict,omitempty"`
}

type GetRecentActivityParams struct {
	Collection string `json:"collection,omitempty"`
	RecordID   string `json:"record_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Type       string `json:"type,omitempty" jsonschema:"activity type such as conflict_detected"`
	// SinceVersion lists what changed after the version a caller loaded.
	SinceVersion record.Version `json:"since_version,omitempty" jsonschema:"only entries stamped after this record version"`
	Limit        int            `json:"limit,omitempty"`
}

type GetRecentActivityResult struct {
	Activity []activity.ActivityEntry `json:"activity"`
}

type SaveRecordParams struct {
	ID      string        `json:"id" jsonschema:"record ID of an open draft"`
	Fields  record.Fields `json:"fields" jsonschema:"fields to write"`
	Replace bool          `json:"replace,omitempty" jsonschema:"replace all fields instead of merging"`
}

type ResolveConflictParams struct {
	ID      string        `json:"id" jsonschema:"record ID of an open draft"`
	Action  string        `json:"action" jsonschema:"reload, force or dismiss"`
	Fields  record.Fields `json:"fields,omitempty" jsonschema:"fields to force, the attempted fields when omitted"`
	Replace bool          `json:"replace,omitempty"`
}

type EditStateResult struct {
	Outcome  string               `json:"outcome,omitempty" jsonschema:"success or conflict for saves and resolutions"`
	State    string               `json:"state" jsonschema:"clean or conflicted"`
	Draft    editor.Draft         `json:"draft"`
	Conflict *record.ConflictInfo `json:"conflict,omitempty"`
}

type CloseRecordResult struct {
	Closed bool `json:"closed"`
}

func (t *tools) createCollection(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateCollectionParams) (*sdkmcp.CallToolResult, CollectionResult, error) {
	c, err := t.services.Collections.Create(ctx, getTenantID(ctx), collection.CreateRequest{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
	})
	if err != nil {
		return nil, CollectionResult{}, mapError(err)
	}
	return nil, CollectionResult{Collection: c}, nil
}

func (t *tools) listCollections(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ListCollectionsParams) (*sdkmcp.CallToolResult, ListCollectionsResult, error) {
	collections, err := t.services.Collections.List(ctx, getTenantID(ctx))
	if err != nil {
		return nil, ListCollectionsResult{}, mapError(err)
	}
	if collections == nil {
		collections = []collection.CollectionSummary{}
	}
	return nil, ListCollectionsResult{Collections: collections}, nil
}

func (t *tools) createRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateRecordParams) (*sdkmcp.CallToolResult, RecordResult, error) {
	rec, err := t.services.Records.Create(ctx, getTenantID(ctx), record.CreateRequest{
		SessionID:  getSessionID(ctx),
		ID:         in.ID,
		Collection: in.Collection,
		Fields:     in.Fields,
	})
	if err != nil {
		return nil, RecordResult{}, mapError(err)
	}
	return nil, RecordResult{Record: rec}, nil
}

func (t *tools) getRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecordIDParams) (*sdkmcp.CallToolResult, RecordResult, error) {
	rec, err := t.services.Records.Get(ctx, getTenantID(ctx), in.ID)
	if err != nil {
		return nil, RecordResult{}, mapError(err)
	}
	return nil, RecordResult{Record: rec}, nil
}

func (t *tools) listRecords(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListRecordsParams) (*sdkmcp.CallToolResult, ListRecordsResult, error) {
	refs, err := t.services.Records.List(ctx, getTenantID(ctx), record.ListRecordsOptions{
		Collection: in.Collection,
		Limit:      in.Limit,
		Offset:     in.Offset,
	})
	if err != nil {
		return nil, ListRecordsResult{}, mapError(err)
	}
	if refs == nil {
		refs = []record.RecordRef{}
	}
	return nil, ListRecordsResult{Records: refs}, nil
}

func (t *tools) deleteRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecordIDParams) (*sdkmcp.CallToolResult, DeleteRecordResult, error) {
	if err := t.services.Records.Delete(ctx, getTenantID(ctx), in.ID); err != nil {
		return nil, DeleteRecordResult{}, mapError(err)
	}
	return nil, DeleteRecordResult{Deleted: true}, nil
}

func (t *tools) checkVersion(ctx context.Context, _ *sdkmcp.CallToolRequest, in CheckVersionParams) (*sdkmcp.CallToolResult, CheckVersionResult, error) {
	info, err := t.services.Records.Detect(ctx, getTenantID(ctx), record.DetectRequest{
		ID:      in.ID,
		Version: in.Version,
		Fields:  in.Fields,
	})
	if err != nil {
		return nil, CheckVersionResult{}, mapError(err)
	}
	if info == nil {
		return nil, CheckVersionResult{Status: "ok"}, nil
	}
	return nil, CheckVersionResult{Status: "conflict", Conflict: info}, nil
}

func (t *tools) updateRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in UpdateRecordParams) (*sdkmcp.CallToolResult, UpdateRecordResult, error) {
	out := t.services.Records.GuardedUpdate(ctx, getTenantID(ctx), record.UpdateRequest{
		SessionID: getSessionID(ctx),
		ID:        in.ID,
		Fields:    in.Fields,
		Version:   in.Version,
		Replace:   in.Replace,
	})
	return updateResult(out)
}

func (t *tools) forceUpdateRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in ForceUpdateRecordParams) (*sdkmcp.CallToolResult, UpdateRecordResult, error) {
	out := t.services.Records.ForceUpdate(ctx, getTenantID(ctx), record.ForceRequest{
		SessionID: getSessionID(ctx),
		ID:        in.ID,
		Fields:    in.Fields,
		Replace:   in.Replace,
	})
	return updateResult(out)
}

func updateResult(out record.Outcome) (*sdkmcp.CallToolResult, UpdateRecordResult, error) {
	switch out.Kind() {
	case record.OutcomeSuccess:
		rec, _ := out.Record()
		return nil, UpdateRecordResult{Status: out.Kind().String(), Record: rec}, nil
	case record.OutcomeConflict:
		info, _ := out.Conflict()
		return nil, UpdateRecordResult{Status: out.Kind().String(), Conflict: info}, nil
	default:
		return nil, UpdateRecordResult{}, mapError(out.Err())
	}
}

func (t *tools) getRecentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetRecentActivityParams) (*sdkmcp.CallToolResult, GetRecentActivityResult, error) {
	opts := activity.ListActivityOptions{
		Collection:   in.Collection,
		SinceVersion: int64(in.SinceVersion),
		Limit:        in.Limit,
	}
	if in.RecordID != "" {
		opts.RecordID = &in.RecordID
	}
	if in.SessionID != "" {
		opts.SessionID = &in.SessionID
	}
	if in.Type != "" {
		typ := activity.ActivityType(in.Type)
		opts.ActivityType = &typ
	}

	entries, err := t.services.Activity.GetRecentActivity(ctx, getTenantID(ctx), opts)
	if err != nil {
		return nil, GetRecentActivityResult{}, mapError(err)
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	return nil, GetRecentActivityResult{Activity: entries}, nil
}

func (t *tools) editorOptions() []editor.Option {
	opts := []editor.Option{editor.WithLogger(t.logger)}
	if t.services.ActivityLog != nil {
		opts = append(opts, editor.WithActivityLog(t.services.ActivityLog))
	}
	return opts
}

func (t *tools) openEditor(ctx context.Context, id string) (*editor.Editor, error) {
	return t.editors.Get(getTenantID(ctx), editorSession(ctx), id)
}

func editState(e *editor.Editor, out *record.Outcome) EditStateResult {
	res := EditStateResult{Draft: e.Draft()}
	state := e.State()
	res.State = state.Name()
	if c, ok := state.(editor.Conflicted); ok {
		res.Conflict = c.Info
	}
	if out != nil {
		res.Outcome = out.Kind().String()
	}
	return res
}

func (t *tools) openRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecordIDParams) (*sdkmcp.CallToolResult, EditStateResult, error) {
	e, err := t.editors.Open(ctx, t.services.Records, getTenantID(ctx), editorSession(ctx), in.ID, t.editorOptions()...)
	if err != nil {
		return nil, EditStateResult{}, mapError(err)
	}
	return nil, editState(e, nil), nil
}

func (t *tools) saveRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in SaveRecordParams) (*sdkmcp.CallToolResult, EditStateResult, error) {
	e, err := t.openEditor(ctx, in.ID)
	if err != nil {
		return nil, EditStateResult{}, mapError(err)
	}
	out := e.Save(ctx, in.Fields, in.Replace)
	if out.Kind() == record.OutcomeFailure {
		return nil, EditStateResult{}, mapError(out.Err())
	}
	return nil, editState(e, &out), nil
}

func (t *tools) getEditState(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecordIDParams) (*sdkmcp.CallToolResult, EditStateResult, error) {
	e, err := t.openEditor(ctx, in.ID)
	if err != nil {
		return nil, EditStateResult{}, mapError(err)
	}
	return nil, editState(e, nil), nil
}

func (t *tools) resolveConflict(ctx context.Context, _ *sdkmcp.CallToolRequest, in ResolveConflictParams) (*sdkmcp.CallToolResult, EditStateResult, error) {
	res, err := editor.ParseResolution(in.Action)
	if err != nil {
		return nil, EditStateResult{}, mapError(err)
	}
	e, err := t.openEditor(ctx, in.ID)
	if err != nil {
		return nil, EditStateResult{}, mapError(err)
	}
	out, err := e.Resolve(ctx, res, in.Fields, in.Replace)
	if err != nil {
		return nil, EditStateResult{}, mapError(err)
	}
	if out.Kind() == record.OutcomeFailure {
		return nil, EditStateResult{}, mapError(out.Err())
	}
	return nil, editState(e, &out), nil
}

func (t *tools) closeRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecordIDParams) (*sdkmcp.CallToolResult, CloseRecordResult, error) {
	if err := t.editors.Close(getTenantID(ctx), editorSession(ctx), in.ID); err != nil {
		return nil, CloseRecordResult{}, mapError(err)
	}
	return nil, CloseRecordResult{Closed: true}, nil
}
