package record

import (
	"strconv"
	"time"
)

// DefaultTolerance absorbs clock and network skew between a caller's version
// and the stored one.
const DefaultTolerance = time.Second

// Version is the optimistic-lock token: milliseconds since the Unix epoch of
// the write that produced it.
type Version int64

// VersionAt converts a wall-clock instant into a version marker.
func VersionAt(t time.Time) Version {
	return Version(t.UnixMilli())
}

// ParseVersion parses the decimal form produced by Version.String.
func ParseVersion(s string) (Version, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Version(n), nil
}

// Time returns the instant the version marks.
func (v Version) Time() time.Time {
	return time.UnixMilli(int64(v))
}

func (v Version) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// Delta returns the absolute distance between two versions.
func Delta(a, b Version) time.Duration {
	d := time.Duration(a-b) * time.Millisecond
	if d < 0 {
		return -d
	}
	return d
}

// Stale reports whether callerVersion is too far from current to be treated
// as the same version. A delta equal to the tolerance is still accepted.
func Stale(current, callerVersion Version, tolerance time.Duration) bool {
	return Delta(current, callerVersion) > tolerance
}

// Condition guards a conditional write.
type Condition struct {
	Expected  Version
	Tolerance time.Duration
}

// Holds reports whether the stored version satisfies the condition.
func (c Condition) Holds(current Version) bool {
	return !Stale(current, c.Expected, c.Tolerance)
}

// Stamp describes the version a committed write receives: At, or the previous
// version plus MinStep when that is later.
type Stamp struct {
	At      Version
	MinStep time.Duration
}

// Next returns the version that replaces previous.
func (s Stamp) Next(previous Version) Version {
	floor := previous + Version(s.MinStep/time.Millisecond)
	if floor <= previous {
		floor = previous + 1
	}
	if s.At > floor {
		return s.At
	}
	return floor
}

// StampFor builds the stamp used for writes guarded by tolerance. A write
// accepted for a caller version up to one tolerance away from the stored one
// must still land more than one tolerance past that caller version, so every
// write moves the version by at least twice the tolerance plus one millisecond.
func StampFor(now time.Time, tolerance time.Duration) Stamp {
	return Stamp{At: VersionAt(now), MinStep: 2*tolerance + time.Millisecond}
}
