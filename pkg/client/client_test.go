package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/obelixia/reclock/internal/memory"
	"github.com/obelixia/reclock/internal/transport"
)

const testKey = "test-key"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	url   string
	clock *testClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	records := memory.NewRecordRepository()
	activities := memory.NewActivityRepository()
	keys := memory.NewAPIKeyRepository()
	require.NoError(t, keys.Add(context.Background(), "tenant1", auth.HashKey(testKey), "test"))

	collections := collection.NewService(memory.NewCollectionRepository(records), nil)
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	handler := transport.NewServer(transport.Services{
		Records:     record.NewService(records, collections, activities, nil, record.WithClock(clock.Now)),
		Collections: collections,
		Activity:    activity.NewService(activities, nil),
	}, transport.AuthMiddleware(auth.NewAPIKeyResolver(keys)), nil)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, clock: clock}
}

func (s *testServer) client(opts ...Option) *Client {
	return New(s.url, append([]Option{WithToken(testKey)}, opts...)...)
}

func TestClient_CreateGetList(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	created, err := c.Create(ctx, record.CreateRequest{ID: "R1", Fields: record.Fields{"name": "Acme"}})
	require.NoError(t, err)
	require.Equal(t, "tenant1", created.TenantID)

	got, err := c.Get(ctx, "", "R1")
	require.NoError(t, err)
	require.Equal(t, created.Version, got.Version)
	require.Equal(t, "Acme", got.Fields["name"])

	refs, err := c.List(ctx, record.ListRecordsOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, refs, 1)

	collections, err := c.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	require.Equal(t, collection.DefaultName, collections[0].Name)

	_, err = c.Create(ctx, record.CreateRequest{ID: "R1"})
	require.ErrorIs(t, err, record.ErrRecordExists)

	require.NoError(t, c.Delete(ctx, "R1"))
	_, err = c.Get(ctx, "", "R1")
	require.ErrorIs(t, err, record.ErrRecordNotFound)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.url, WithToken("wrong"))

	_, err := c.Get(context.Background(), "", "R1")
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestClient_GuardedUpdateOutcomes(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()
	ctx := context.Background()

	created, err := c.Create(ctx, record.CreateRequest{ID: "R1", Fields: record.Fields{"name": "Acme", "city": "Oslo"}})
	require.NoError(t, err)
	v0 := created.Version

	srv.clock.Advance(5 * time.Second)
	out := c.GuardedUpdate(ctx, "", record.UpdateRequest{ID: "R1", Fields: record.Fields{"city": "Bergen"}, Version: v0})
	rec, ok := out.Record()
	require.True(t, ok)
	v1 := rec.Version

	info, err := c.Check(ctx, "R1", v1, nil)
	require.NoError(t, err)
	require.Nil(t, info)

	info, err = c.Check(ctx, "R1", v0, record.Fields{"name": "Acme AS"})
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, v1, info.ServerVersion)

	out = c.GuardedUpdate(ctx, "", record.UpdateRequest{ID: "R1", Fields: record.Fields{"name": "Acme AS"}, Version: v0})
	require.Equal(t, record.OutcomeConflict, out.Kind())
	conflict, _ := out.Conflict()
	require.Equal(t, v1, conflict.ServerVersion)
	require.Equal(t, v0, conflict.LocalVersion)
	require.Equal(t, "Bergen", conflict.CurrentFields["city"])
	require.Equal(t, "Acme AS", conflict.AttemptedFields["name"])

	out = c.GuardedUpdate(ctx, "", record.UpdateRequest{ID: "missing", Fields: record.Fields{}, Version: v0})
	require.True(t, out.NotFound())

	srv.clock.Advance(time.Second)
	out = c.ForceUpdate(ctx, "", record.ForceRequest{ID: "R1", Fields: record.Fields{"name": "Acme AS"}})
	rec, ok = out.Record()
	require.True(t, ok)
	require.Greater(t, rec.Version, v1)
	require.Equal(t, "Bergen", rec.Fields["city"])
}

func TestClient_UnreachableIsStoreFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(addr)
	out := c.GuardedUpdate(context.Background(), "", record.UpdateRequest{ID: "R1", Version: 1})
	require.Equal(t, record.OutcomeFailure, out.Kind())
	require.ErrorIs(t, out.Err(), record.ErrStoreFailure)
	require.ErrorIs(t, out.Err(), ErrUnreachable)
	require.False(t, out.NotFound())
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).Get(context.Background(), "", "R1")
	require.ErrorIs(t, err, record.ErrStoreFailure)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Equal(t, "bad gateway", apiErr.Message)
}

func TestClient_DrivesEditor(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice := srv.client(WithSession("alice"))
	bob := srv.client(WithSession("bob"))

	_, err := alice.Create(ctx, record.CreateRequest{ID: "R1", Fields: record.Fields{"name": "Acme", "city": "Oslo"}})
	require.NoError(t, err)

	aliceEd, err := editor.Open(ctx, alice, "", "R1")
	require.NoError(t, err)
	bobEd, err := editor.Open(ctx, bob, "", "R1")
	require.NoError(t, err)

	srv.clock.Advance(5 * time.Second)
	require.Equal(t, record.OutcomeSuccess, bobEd.Save(ctx, record.Fields{"city": "Bergen"}, false).Kind())

	out := aliceEd.Save(ctx, record.Fields{"name": "Acme AS"}, false)
	require.Equal(t, record.OutcomeConflict, out.Kind())
	_, conflicted := aliceEd.State().(editor.Conflicted)
	require.True(t, conflicted)

	srv.clock.Advance(time.Second)
	out = aliceEd.ForceWrite(ctx, record.Fields{"name": "Acme AS"}, false)
	require.Equal(t, record.OutcomeSuccess, out.Kind())
	require.IsType(t, editor.Clean{}, aliceEd.State())

	got, err := bob.Get(ctx, "", "R1")
	require.NoError(t, err)
	require.Equal(t, record.Fields{"name": "Acme AS", "city": "Bergen"}, got.Fields)
}
