package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/repository"
)

// CollectionRepository implements collection.Repository in memory. When
// records is set, summaries carry record counts.
type CollectionRepository struct {
	mu          sync.Mutex
	collections map[string][]collection.Collection
	records     *RecordRepository
}

var _ collection.Repository = (*CollectionRepository)(nil)

// NewCollectionRepository creates an empty CollectionRepository.
func NewCollectionRepository(records *RecordRepository) *CollectionRepository {
	return &CollectionRepository{
		collections: map[string][]collection.Collection{},
		records:     records,
	}
}

func (r *CollectionRepository) Create(_ context.Context, tenantID string, c *collection.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.collections[tenantID] {
		if existing.ID == c.ID || existing.Name == c.Name {
			return repository.ErrAlreadyExists
		}
	}
	stored := *c
	stored.TenantID = tenantID
	r.collections[tenantID] = append(r.collections[tenantID], stored)
	c.TenantID = tenantID
	return nil
}

func (r *CollectionRepository) Get(_ context.Context, tenantID, id string) (*collection.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.collections[tenantID] {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *CollectionRepository) GetByName(_ context.Context, tenantID, name string) (*collection.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.collections[tenantID] {
		if c.Name == name {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *CollectionRepository) List(_ context.Context, tenantID string) ([]collection.CollectionSummary, error) {
	r.mu.Lock()
	list := append([]collection.Collection(nil), r.collections[tenantID]...)
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	summaries := make([]collection.CollectionSummary, 0, len(list))
	for _, c := range list {
		summary := collection.CollectionSummary{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			CreatedAt:   c.CreatedAt,
		}
		if r.records != nil {
			summary.RecordCount = r.records.Count(tenantID, c.Name)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
