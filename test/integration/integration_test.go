package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/obelixia/reclock/internal/testserver"
	"github.com/obelixia/reclock/pkg/client"
)

type testEnv struct {
	ts *testserver.TestServer
	a  *client.Client
	b  *client.Client
	r1 *record.Record
}

// newTestEnv starts a server and creates R1 at T0 with two callers, A and B.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ts := testserver.New(t, "key-1", "tenant1")
	env := &testEnv{
		ts: ts,
		a:  client.New(ts.URL(), client.WithToken(ts.Token), client.WithSession("caller-a")),
		b:  client.New(ts.URL(), client.WithToken(ts.Token), client.WithSession("caller-b")),
	}

	r1, err := env.a.Create(context.Background(), record.CreateRequest{
		ID:         "R1",
		Collection: "companies",
		Fields:     record.Fields{"name": "Acme", "city": "Oslo"},
	})
	require.NoError(t, err)
	require.Equal(t, record.VersionAt(testserver.Start), r1.Version)
	env.r1 = r1
	return env
}

// writeAsB has B write R1 five seconds after T0.
func (env *testEnv) writeAsB(t *testing.T) *record.Record {
	t.Helper()
	env.ts.Clock.Advance(5 * time.Second)
	out := env.b.GuardedUpdate(context.Background(), "", record.UpdateRequest{
		ID:      "R1",
		Fields:  record.Fields{"city": "Bergen"},
		Version: env.r1.Version,
	})
	rec, ok := out.Record()
	require.True(t, ok, "B's write: %v", out.Err())
	require.Equal(t, env.r1.Version+5000, rec.Version)
	return rec
}

func TestIntegration_BasicConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	t0 := env.r1.Version
	env.writeAsB(t)

	out := env.a.GuardedUpdate(ctx, "", record.UpdateRequest{ID: "R1", Fields: record.Fields{"name": "X"}, Version: t0})
	require.Equal(t, record.OutcomeConflict, out.Kind())
	info, _ := out.Conflict()
	require.Equal(t, t0+5000, info.ServerVersion)
	require.Equal(t, t0, info.LocalVersion)
	require.Equal(t, "R1", info.RecordID)
	require.Equal(t, record.Fields{"name": "X"}, info.AttemptedFields)
	require.Equal(t, "Bergen", info.CurrentFields["city"])
	require.NotEmpty(t, info.Message)

	got, err := env.a.Get(ctx, "", "R1")
	require.NoError(t, err)
	require.Equal(t, "Acme", got.Fields["name"])
}

func TestIntegration_ReloadThenSucceed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	t0 := env.r1.Version

	a, err := editor.Open(ctx, env.a, "", "R1", editor.WithSession("caller-a"))
	require.NoError(t, err)
	env.writeAsB(t)

	out := a.Save(ctx, record.Fields{"name": "X"}, false)
	require.Equal(t, record.OutcomeConflict, out.Kind())
	require.IsType(t, editor.Conflicted{}, a.State())

	out = a.Reload(ctx)
	require.Equal(t, record.OutcomeSuccess, out.Kind())
	require.IsType(t, editor.Clean{}, a.State())
	require.Equal(t, t0+5000, a.Draft().Version)
	require.Equal(t, "Bergen", a.Draft().Fields["city"])

	env.ts.Clock.Advance(time.Second)
	out = env.a.GuardedUpdate(ctx, "", record.UpdateRequest{ID: "R1", Fields: record.Fields{"name": "X"}, Version: t0 + 5000})
	rec, ok := out.Record()
	require.True(t, ok)
	require.Equal(t, "X", rec.Fields["name"])
	require.Equal(t, "Bergen", rec.Fields["city"])
}

func TestIntegration_ForceOverwrite(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	t0 := env.r1.Version
	env.writeAsB(t)

	out := env.a.ForceUpdate(ctx, "", record.ForceRequest{ID: "R1", Fields: record.Fields{"name": "X"}})
	rec, ok := out.Record()
	require.True(t, ok)
	require.Greater(t, int64(rec.Version), int64(t0+5000))
	require.Equal(t, "X", rec.Fields["name"])
	require.Equal(t, "Bergen", rec.Fields["city"])

	out = env.a.ForceUpdate(ctx, "", record.ForceRequest{ID: "R1", Fields: record.Fields{"name": "Y"}, Replace: true})
	rec, ok = out.Record()
	require.True(t, ok)
	require.Equal(t, record.Fields{"name": "Y"}, rec.Fields)
}

func TestIntegration_NoSilentLostUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	const writers = 8
	outcomes := make([]record.Outcome, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := client.New(env.ts.URL(), client.WithToken(env.ts.Token))
			outcomes[i] = c.GuardedUpdate(ctx, "", record.UpdateRequest{
				ID:      "R1",
				Fields:  record.Fields{"writer": float64(i)},
				Version: env.r1.Version,
			})
		}(i)
	}
	wg.Wait()

	var winner *record.Record
	conflicts := 0
	for _, out := range outcomes {
		switch out.Kind() {
		case record.OutcomeSuccess:
			require.Nil(t, winner, "two writers succeeded against the same version")
			winner, _ = out.Record()
		case record.OutcomeConflict:
			conflicts++
		default:
			t.Fatalf("unexpected failure: %v", out.Err())
		}
	}
	require.NotNil(t, winner)
	require.Equal(t, writers-1, conflicts)

	got, err := env.a.Get(ctx, "", "R1")
	require.NoError(t, err)
	require.Equal(t, winner.Fields["writer"], got.Fields["writer"])
	require.Equal(t, winner.Version, got.Version)
}

func TestIntegration_StaleRetryConflictsEveryTime(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := record.UpdateRequest{ID: "R1", Fields: record.Fields{"name": "X"}, Version: env.r1.Version}

	env.ts.Clock.Advance(2 * time.Second)
	require.Equal(t, record.OutcomeSuccess, env.a.GuardedUpdate(ctx, "", req).Kind())
	for i := 0; i < 3; i++ {
		require.Equal(t, record.OutcomeConflict, env.a.GuardedUpdate(ctx, "", req).Kind())
	}
}

func TestIntegration_ForceNeverConflicts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		env.ts.Clock.Advance(time.Duration(i) * 300 * time.Millisecond)
		out := env.b.ForceUpdate(ctx, "", record.ForceRequest{ID: "R1", Fields: record.Fields{"n": float64(i)}})
		require.Equal(t, record.OutcomeSuccess, out.Kind())
	}
}

func TestIntegration_ToleranceBoundary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	v := env.r1.Version

	for _, delta := range []record.Version{0, 999, -999, 1000, -1000} {
		info, err := env.a.Check(ctx, "R1", v+delta, nil)
		require.NoError(t, err)
		require.Nil(t, info, "delta %d", delta)
	}
	for _, delta := range []record.Version{1001, -1001} {
		info, err := env.a.Check(ctx, "R1", v+delta, record.Fields{"name": "X"})
		require.NoError(t, err)
		require.NotNil(t, info, "delta %d", delta)
		require.Equal(t, v, info.ServerVersion)
	}
}

func TestIntegration_NotFoundIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	out := env.a.GuardedUpdate(ctx, "", record.UpdateRequest{ID: "missing", Fields: record.Fields{"name": "X"}, Version: env.r1.Version})
	require.Equal(t, record.OutcomeFailure, out.Kind())
	require.True(t, out.NotFound())
	require.ErrorIs(t, out.Err(), record.ErrRecordNotFound)

	_, err := env.a.Check(ctx, "missing", env.r1.Version, nil)
	require.ErrorIs(t, err, record.ErrRecordNotFound)

	a, err := editor.Open(ctx, env.a, "", "R1")
	require.NoError(t, err)
	env.writeAsB(t)
	require.Equal(t, record.OutcomeConflict, a.Save(ctx, record.Fields{"name": "X"}, false).Kind())
	require.NoError(t, env.b.Delete(ctx, "R1"))

	out = a.Reload(ctx)
	require.True(t, out.NotFound())
	require.IsType(t, editor.Conflicted{}, a.State())
}

func TestIntegration_ActivityTrail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	t0 := env.r1.Version
	env.writeAsB(t)

	require.Equal(t, record.OutcomeConflict,
		env.a.GuardedUpdate(ctx, "", record.UpdateRequest{ID: "R1", Fields: record.Fields{"name": "X"}, Version: t0}).Kind())
	env.ts.Clock.Advance(time.Second)
	require.Equal(t, record.OutcomeSuccess,
		env.a.ForceUpdate(ctx, "", record.ForceRequest{ID: "R1", Fields: record.Fields{"name": "X"}}).Kind())

	entries, err := env.a.Activity(ctx, activity.ListActivityOptions{Collection: "companies"})
	require.NoError(t, err)
	types := make([]activity.ActivityType, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.ActivityType)
	}
	require.Equal(t, []activity.ActivityType{
		activity.TypeRecordOverwritten,
		activity.TypeConflictDetected,
		activity.TypeRecordUpdated,
		activity.TypeRecordCreated,
	}, types)
	require.Equal(t, "caller-a", *entries[1].SessionID)
	require.Equal(t, "caller-b", *entries[2].SessionID)

	// What A missed after loading T0.
	recordID := "R1"
	missed, err := env.a.Activity(ctx, activity.ListActivityOptions{RecordID: &recordID, SinceVersion: int64(t0)})
	require.NoError(t, err)
	require.Len(t, missed, 3)
	require.Equal(t, activity.TypeRecordUpdated, missed[2].ActivityType)
}

func TestIntegration_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.ts.AddAPIKey("key-2", "tenant2"))

	other := client.New(env.ts.URL(), client.WithToken("key-2"))
	_, err := other.Get(ctx, "", "R1")
	require.ErrorIs(t, err, record.ErrRecordNotFound)

	out := other.ForceUpdate(ctx, "", record.ForceRequest{ID: "R1", Fields: record.Fields{"name": "X"}})
	require.True(t, out.NotFound())

	_, err = client.New(env.ts.URL(), client.WithToken("nope")).Get(ctx, "", "R1")
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}
