package record_test

import (
	"testing"
	"time"

	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/stretchr/testify/require"
)

func TestStale_ToleranceBoundary(t *testing.T) {
	const current = record.Version(1_700_000_000_000)

	tests := []struct {
		name   string
		caller record.Version
		stale  bool
	}{
		{"equal", current, false},
		{"999ms behind", current - 999, false},
		{"1000ms behind", current - 1000, false},
		{"1001ms behind", current - 1001, true},
		{"999ms ahead", current + 999, false},
		{"1000ms ahead", current + 1000, false},
		{"1001ms ahead", current + 1001, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.stale, record.Stale(current, tt.caller, record.DefaultTolerance))
			require.Equal(t, !tt.stale, record.Condition{Expected: tt.caller, Tolerance: record.DefaultTolerance}.Holds(current))
		})
	}
}

func TestStale_ZeroToleranceIsExact(t *testing.T) {
	require.False(t, record.Stale(10, 10, 0))
	require.True(t, record.Stale(10, 11, 0))
}

func TestStamp_Next(t *testing.T) {
	stamp := record.Stamp{At: 10_000, MinStep: 2001 * time.Millisecond}

	require.Equal(t, record.Version(10_000), stamp.Next(5_000))
	require.Equal(t, record.Version(11_001), stamp.Next(9_000))
	// A clock running behind the stored version still moves it forward.
	require.Equal(t, record.Version(22_001), stamp.Next(20_000))

	zero := record.Stamp{At: 0}
	require.Equal(t, record.Version(101), zero.Next(100))
}

func TestStampFor_MovesPastAnyAcceptedCaller(t *testing.T) {
	tol := record.DefaultTolerance
	stored := record.Version(50_000)
	stamp := record.StampFor(stored.Time(), tol)
	next := stamp.Next(stored)

	// Any caller version accepted against stored is stale against next.
	for _, caller := range []record.Version{stored - 1000, stored, stored + 1000} {
		require.True(t, record.Condition{Expected: caller, Tolerance: tol}.Holds(stored))
		require.True(t, record.Stale(next, caller, tol), "caller %s", caller)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := record.ParseVersion("1714564800000")
	require.NoError(t, err)
	require.Equal(t, record.Version(1714564800000), v)
	require.Equal(t, "1714564800000", v.String())
	require.Equal(t, int64(1714564800000), v.Time().UnixMilli())

	_, err = record.ParseVersion("yesterday")
	require.Error(t, err)
}

func TestChange_Apply(t *testing.T) {
	current := record.Fields{"name": "Acme", "stage": "lead"}

	merged := record.Change{Fields: record.Fields{"stage": "won"}}.Apply(current)
	require.Equal(t, record.Fields{"name": "Acme", "stage": "won"}, merged)
	require.Equal(t, "lead", current["stage"], "apply must not mutate the stored fields")

	replaced := record.Change{Fields: record.Fields{"stage": "won"}, Replace: true}.Apply(current)
	require.Equal(t, record.Fields{"stage": "won"}, replaced)

	require.Equal(t, record.Fields{}, record.Change{Replace: true}.Apply(current))
	require.Equal(t, record.Fields{}, record.Change{}.Apply(nil))
}
