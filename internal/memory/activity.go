package memory

import (
	"context"
	"sync"
	"time"

	"github.com/obelixia/reclock/internal/domain/activity"
)

// ActivityRepository implements activity.Repository in memory.
type ActivityRepository struct {
	mu      sync.Mutex
	nextID  int64
	entries []activity.ActivityEntry
}

var _ activity.Repository = (*ActivityRepository)(nil)

// NewActivityRepository creates an empty ActivityRepository.
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

func (r *ActivityRepository) Log(_ context.Context, tenantID string, entry *activity.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID
	entry.TenantID = tenantID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

// List returns matching entries newest first.
func (r *ActivityRepository) List(_ context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []activity.ActivityEntry
	skipped := 0
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.TenantID != tenantID || !matches(e, opts) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func matches(e activity.ActivityEntry, opts activity.ListActivityOptions) bool {
	if opts.Collection != "" && e.Collection != opts.Collection {
		return false
	}
	if opts.RecordID != nil && (e.RecordID == nil || *e.RecordID != *opts.RecordID) {
		return false
	}
	if opts.SessionID != nil && (e.SessionID == nil || *e.SessionID != *opts.SessionID) {
		return false
	}
	if opts.ActivityType != nil && e.ActivityType != *opts.ActivityType {
		return false
	}
	if opts.SinceVersion > 0 && e.Version <= opts.SinceVersion {
		return false
	}
	return true
}
