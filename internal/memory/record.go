package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/obelixia/reclock/internal/repository"
)

type recordKey struct {
	tenantID string
	id       string
}

// RecordRepository implements record.RecordRepository in memory.
type RecordRepository struct {
	mu      sync.Mutex
	records map[recordKey]record.Record
}

var _ record.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates an empty RecordRepository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{records: map[recordKey]record.Record{}}
}

func (r *RecordRepository) Create(_ context.Context, tenantID string, rec *record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{tenantID, rec.ID}
	if _, ok := r.records[key]; ok {
		return repository.ErrAlreadyExists
	}
	stored := *rec
	stored.TenantID = tenantID
	stored.Fields = rec.Fields.Clone()
	r.records[key] = stored
	rec.TenantID = tenantID
	return nil
}

func (r *RecordRepository) Get(_ context.Context, tenantID, id string) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[recordKey{tenantID, id}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRecord(stored), nil
}

func (r *RecordRepository) ConditionalWrite(_ context.Context, tenantID, id string, change record.Change, cond record.Condition, stamp record.Stamp) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{tenantID, id}
	stored, ok := r.records[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !cond.Holds(stored.Version) {
		return nil, &record.VersionMismatchError{Current: copyRecord(stored)}
	}
	return r.commit(key, stored, change, stamp), nil
}

func (r *RecordRepository) Write(_ context.Context, tenantID, id string, change record.Change, stamp record.Stamp) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{tenantID, id}
	stored, ok := r.records[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.commit(key, stored, change, stamp), nil
}

// commit must be called with r.mu held.
func (r *RecordRepository) commit(key recordKey, stored record.Record, change record.Change, stamp record.Stamp) *record.Record {
	stored.Fields = change.Apply(stored.Fields)
	stored.Version = stamp.Next(stored.Version)
	r.records[key] = stored
	return copyRecord(stored)
}

func (r *RecordRepository) Delete(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{tenantID, id}
	if _, ok := r.records[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, key)
	return nil
}

// List returns references ordered newest first, like the SQL stores.
func (r *RecordRepository) List(_ context.Context, tenantID string, opts record.ListRecordsOptions) ([]record.RecordRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var refs []record.RecordRef
	for key, rec := range r.records {
		if key.tenantID != tenantID {
			continue
		}
		if opts.Collection != "" && rec.Collection != opts.Collection {
			continue
		}
		refs = append(refs, record.RecordRef{
			ID:         rec.ID,
			Collection: rec.Collection,
			Version:    rec.Version,
			CreatedAt:  rec.CreatedAt,
		})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].CreatedAt.After(refs[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(refs) {
			return nil, nil
		}
		refs = refs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(refs) {
		refs = refs[:opts.Limit]
	}
	return refs, nil
}

// Count returns the number of records a tenant holds in a collection.
func (r *RecordRepository) Count(tenantID, collectionName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, rec := range r.records {
		if key.tenantID == tenantID && rec.Collection == collectionName {
			n++
		}
	}
	return n
}

func copyRecord(rec record.Record) *record.Record {
	out := rec
	out.Fields = rec.Fields.Clone()
	return &out
}
