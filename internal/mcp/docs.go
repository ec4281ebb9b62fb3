package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `reclock stores business records (companies, deals, contacts) and protects them from lost updates.

Core concepts:
- Record: id, collection, free-form fields and a version.
- Version: milliseconds since the epoch of the last write. Keep the version you loaded; every write needs it.
- Conflict: the stored version differs from yours by more than the tolerance (1s by default). Somebody else saved in between.

Rules of engagement:
1) Load with get_record (or open_record to let the server keep your draft).
2) Write with update_record passing the version you loaded, or save_record on an open draft.
3) On status "conflict", show the user current_fields next to attempted_fields. Never retry silently.
4) Let the user pick: reload (take theirs), force (overwrite theirs) or dismiss (decide later).
   force_update_record and resolve_conflict{action: force} overwrite without checking. Use them only after the user chose to.
5) get_recent_activity shows who changed what and every detected conflict.

Transport notes:
- HTTP: pass the session via the Mcp-Session-Id header; open drafts are kept per session.
- Stdio: one client, one session.

Docs:
- reclock://docs/index
- reclock://docs/concepts
- reclock://docs/workflows/conflicts
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "reclock://docs/index",
		Name:        "docs_index",
		Title:       "reclock docs index",
		Description: "Entry point: which tool to call when, and which doc to read next.",
		Content: `# reclock: Agent Docs Index

## Quick start

1. ` + "`list_collections`" + ` / ` + "`list_records`" + ` to find the record.
2. ` + "`get_record`" + ` and remember ` + "`version`" + `.
3. ` + "`update_record`" + ` with that version.
4. On ` + "`status: conflict`" + ` follow reclock://docs/workflows/conflicts.

For multi-step edits prefer ` + "`open_record`" + ` / ` + "`save_record`" + ` / ` + "`resolve_conflict`" + `: the server holds the
draft and its conflict for your session until ` + "`close_record`" + `.

## Docs

- ` + "`reclock://docs/concepts`" + ` versions, tolerance, merge and replace.
- ` + "`reclock://docs/workflows/conflicts`" + ` reload, force and dismiss.
`,
	},
	{
		URI:         "reclock://docs/concepts",
		Name:        "docs_concepts",
		Title:       "Concepts and invariants",
		Description: "Versions, tolerance, merge vs replace and what a conflict carries.",
		Content: `# Concepts and invariants

## Version

Every write stamps a new version: the write time in milliseconds since the epoch, and always at least
two tolerances past the previous version. Versions never go backwards.

## Tolerance

Two versions within the tolerance (default 1000 ms, exactly 1000 ms still matches) are the same
version. Anything further apart is a conflict.

## Guarded and forced writes

- Guarded (` + "`update_record`" + `, ` + "`save_record`" + `): the check and the write are one atomic step at the store.
  A retry with the same old version after a successful write conflicts; it never writes twice.
- Forced (` + "`force_update_record`" + `, ` + "`resolve_conflict`" + ` force): no check. The last forced write wins.

## Merge and replace

By default the given fields are merged over the stored ones. ` + "`replace: true`" + ` writes exactly the given map.

## Conflict

A conflict carries ` + "`current_fields`" + ` and ` + "`server_version`" + ` (what is stored now) and
` + "`attempted_fields`" + ` and ` + "`local_version`" + ` (what you tried). It is never stored; losing it only
means the next save conflicts again.
`,
	},
	{
		URI:         "reclock://docs/workflows/conflicts",
		Name:        "docs_workflow_conflicts",
		Title:       "Workflow: conflicts",
		Description: "How to present a conflict and apply the user's choice.",
		Content: `# Workflow: conflicts

1. Show the user both sides: ` + "`current_fields`" + ` against ` + "`attempted_fields`" + `.
2. Ask which to keep. Do not merge on your own.
3. Apply the choice with ` + "`resolve_conflict`" + `:
   - ` + "`reload`" + `: the draft becomes the stored record. Unsaved edits are dropped.
   - ` + "`force`" + `: overwrite with the attempted fields (or pass ` + "`fields`" + `). Fails with NOT_CONFLICTED when there is no conflict.
   - ` + "`dismiss`" + `: forget the conflict and keep the stale draft. The next save conflicts again.
4. If the record was deleted, reload fails with RECORD_NOT_FOUND and the conflict stays.

Stateless callers do the same with ` + "`get_record`" + ` (reload) or ` + "`force_update_record`" + ` (force).
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
