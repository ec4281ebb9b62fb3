package record

import (
	"context"

	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
)

// RecordRepository is the versioned record store. ConditionalWrite must check
// the condition and write in one atomic step; on mismatch it returns a
// *VersionMismatchError carrying the stored record.
type RecordRepository interface {
	Create(ctx context.Context, tenantID string, rec *Record) error
	Get(ctx context.Context, tenantID, id string) (*Record, error)
	ConditionalWrite(ctx context.Context, tenantID, id string, change Change, cond Condition, stamp Stamp) (*Record, error)
	Write(ctx context.Context, tenantID, id string, change Change, stamp Stamp) (*Record, error)
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string, opts ListRecordsOptions) ([]RecordRef, error)
}

// CollectionResolver resolves the collection a new record is filed under.
// An empty name resolves to the tenant's default collection.
type CollectionResolver interface {
	Resolve(ctx context.Context, tenantID, name string) (*collection.Collection, error)
}

// ActivityRepository logs record activities.
type ActivityRepository interface {
	Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error
}
