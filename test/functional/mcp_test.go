package functional_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/obelixia/reclock/internal/testserver"
)

// bearerTransport adds the Authorization header to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

type mcpSession struct {
	session *sdkmcp.ClientSession
}

// connect opens an MCP session over streamable HTTP. Each session gets its
// own Mcp-Session-Id and therefore its own editors.
func connect(t *testing.T, ts *testserver.TestServer, token string) *mcpSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := &sdkmcp.StreamableClientTransport{
		Endpoint: ts.URL() + "/mcp",
		HTTPClient: &http.Client{
			Transport: &bearerTransport{token: token, base: http.DefaultTransport},
		},
		MaxRetries: -1,
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "functional-test", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return &mcpSession{session: session}
}

func (s *mcpSession) call(t *testing.T, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := s.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "tools/call %s", name)
	require.NotEmpty(t, result.Content)
	return result
}

// callTool calls a tool that must succeed and decodes its JSON text.
func callTool[T any](t *testing.T, s *mcpSession, name string, args map[string]any) T {
	t.Helper()
	result := s.call(t, name, args)
	text := result.Content[0].(*sdkmcp.TextContent).Text
	require.False(t, result.IsError, "%s: %s", name, text)
	var out T
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

// callToolError calls a tool that must fail and returns the error code.
func (s *mcpSession) callToolError(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	result := s.call(t, name, args)
	require.True(t, result.IsError, "%s unexpectedly succeeded", name)
	var apiErr struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].(*sdkmcp.TextContent).Text), &apiErr))
	return apiErr.Code
}

type recordJSON struct {
	ID      string         `json:"id"`
	Fields  map[string]any `json:"fields"`
	Version int64          `json:"version"`
}

type recordResult struct {
	Record recordJSON `json:"record"`
}

type updateResult struct {
	Status   string        `json:"status"`
	Record   recordJSON    `json:"record"`
	Conflict *conflictJSON `json:"conflict"`
}

type conflictJSON struct {
	RecordID      string         `json:"record_id"`
	ServerVersion int64          `json:"server_version"`
	LocalVersion  int64          `json:"local_version"`
	Attempted     map[string]any `json:"attempted_fields"`
	CurrentFields map[string]any `json:"current_fields"`
}

type editState struct {
	Outcome string `json:"outcome"`
	State   string `json:"state"`
	Draft   struct {
		Fields  map[string]any `json:"fields"`
		Version int64          `json:"version"`
	} `json:"draft"`
	Conflict *conflictJSON `json:"conflict"`
}

func createR1(t *testing.T, s *mcpSession) recordJSON {
	t.Helper()
	created := callTool[recordResult](t, s, "create_record", map[string]any{
		"id":         "R1",
		"collection": "companies",
		"fields":     map[string]any{"name": "Acme", "city": "Oslo"},
	})
	return created.Record
}

func TestFunctional_Authentication(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")

	bad := connect(t, ts, "wrong")
	_, err := bad.session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: "list_collections"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unauthorized")

	good := connect(t, ts, "token")
	list := callTool[struct {
		Collections []any `json:"collections"`
	}](t, good, "list_collections", map[string]any{})
	require.Empty(t, list.Collections)
}

func TestFunctional_StatelessConflict(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")
	a := connect(t, ts, "token")
	b := connect(t, ts, "token")
	r1 := createR1(t, a)

	ts.Clock.Advance(5 * time.Second)
	bWrite := callTool[updateResult](t, b, "update_record", map[string]any{
		"id": "R1", "version": r1.Version, "fields": map[string]any{"city": "Bergen"},
	})
	require.Equal(t, "success", bWrite.Status)
	require.Equal(t, r1.Version+5000, bWrite.Record.Version)

	check := callTool[struct {
		Status   string        `json:"status"`
		Conflict *conflictJSON `json:"conflict"`
	}](t, a, "check_version", map[string]any{"id": "R1", "version": r1.Version})
	require.Equal(t, "conflict", check.Status)
	require.NotNil(t, check.Conflict)

	aWrite := callTool[updateResult](t, a, "update_record", map[string]any{
		"id": "R1", "version": r1.Version, "fields": map[string]any{"name": "X"},
	})
	require.Equal(t, "conflict", aWrite.Status)
	require.Equal(t, r1.Version+5000, aWrite.Conflict.ServerVersion)
	require.Equal(t, r1.Version, aWrite.Conflict.LocalVersion)
	require.Equal(t, "Bergen", aWrite.Conflict.CurrentFields["city"])
	require.Equal(t, "X", aWrite.Conflict.Attempted["name"])

	forced := callTool[updateResult](t, a, "force_update_record", map[string]any{
		"id": "R1", "fields": map[string]any{"name": "X"},
	})
	require.Equal(t, "success", forced.Status)
	require.Greater(t, forced.Record.Version, r1.Version+5000)
	require.Equal(t, "X", forced.Record.Fields["name"])

	require.Equal(t, "RECORD_NOT_FOUND", a.callToolError(t, "get_record", map[string]any{"id": "missing"}))
}

func TestFunctional_EditorSessionsAreIsolated(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")
	a := connect(t, ts, "token")
	b := connect(t, ts, "token")
	createR1(t, a)

	state := callTool[editState](t, a, "open_record", map[string]any{"id": "R1"})
	require.Equal(t, "clean", state.State)
	v0 := state.Draft.Version

	callTool[editState](t, b, "open_record", map[string]any{"id": "R1"})
	ts.Clock.Advance(5 * time.Second)
	state = callTool[editState](t, b, "save_record", map[string]any{"id": "R1", "fields": map[string]any{"city": "Bergen"}})
	require.Equal(t, "success", state.Outcome)
	v1 := state.Draft.Version

	state = callTool[editState](t, a, "save_record", map[string]any{"id": "R1", "fields": map[string]any{"name": "X"}})
	require.Equal(t, "conflict", state.Outcome)
	require.Equal(t, "conflicted", state.State)
	require.Equal(t, v1, state.Conflict.ServerVersion)
	require.Equal(t, v0, state.Conflict.LocalVersion)

	// B's editor is unaffected by A's conflict.
	state = callTool[editState](t, b, "get_edit_state", map[string]any{"id": "R1"})
	require.Equal(t, "clean", state.State)
	require.Nil(t, state.Conflict)

	state = callTool[editState](t, a, "resolve_conflict", map[string]any{"id": "R1", "action": "reload"})
	require.Equal(t, "clean", state.State)
	require.Nil(t, state.Conflict)
	require.Equal(t, v1, state.Draft.Version)
	require.Equal(t, "Bergen", state.Draft.Fields["city"])

	ts.Clock.Advance(time.Second)
	state = callTool[editState](t, a, "save_record", map[string]any{"id": "R1", "fields": map[string]any{"name": "X"}})
	require.Equal(t, "success", state.Outcome)
	require.Equal(t, "X", state.Draft.Fields["name"])
	require.Equal(t, "Bergen", state.Draft.Fields["city"])

	closed := callTool[struct {
		Closed bool `json:"closed"`
	}](t, a, "close_record", map[string]any{"id": "R1"})
	require.True(t, closed.Closed)
	require.Equal(t, "EDITOR_NOT_OPEN", a.callToolError(t, "get_edit_state", map[string]any{"id": "R1"}))

	// Ending B's session drops its editor.
	require.Equal(t, 1, ts.App.Editors.Len())
	require.NoError(t, b.session.Close())
	require.Eventually(t, func() bool { return ts.App.Editors.Len() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestFunctional_ForceResolutionIsLogged(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")
	a := connect(t, ts, "token")
	b := connect(t, ts, "token")
	createR1(t, a)

	callTool[editState](t, a, "open_record", map[string]any{"id": "R1"})
	ts.Clock.Advance(5 * time.Second)
	bWrite := callTool[updateResult](t, b, "force_update_record", map[string]any{"id": "R1", "fields": map[string]any{"city": "Bergen"}})
	require.Equal(t, "success", bWrite.Status)

	state := callTool[editState](t, a, "save_record", map[string]any{"id": "R1", "fields": map[string]any{"name": "X"}})
	require.Equal(t, "conflicted", state.State)

	state = callTool[editState](t, a, "resolve_conflict", map[string]any{"id": "R1", "action": "force"})
	require.Equal(t, "success", state.Outcome)
	require.Equal(t, "clean", state.State)
	require.Equal(t, "X", state.Draft.Fields["name"])
	require.Equal(t, "Bergen", state.Draft.Fields["city"])

	log := callTool[struct {
		Activity []struct {
			Type    string `json:"type"`
			Details string `json:"details"`
		} `json:"activity"`
	}](t, a, "get_recent_activity", map[string]any{"record_id": "R1", "type": "conflict_resolved"})
	require.Len(t, log.Activity, 1)
	require.Contains(t, log.Activity[0].Details, `"resolution":"force"`)
}
