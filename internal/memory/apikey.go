package memory

import (
	"context"
	"sync"

	"github.com/obelixia/reclock/internal/repository"
)

// APIKeyRepository keeps API key hashes in memory.
type APIKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewAPIKeyRepository creates an empty APIKeyRepository.
func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{keys: map[string]string{}}
}

// Add stores a key hash for a tenant.
func (r *APIKeyRepository) Add(_ context.Context, tenantID, keyHash, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[keyHash]; ok {
		return repository.ErrAlreadyExists
	}
	r.keys[keyHash] = tenantID
	return nil
}

// TenantForKeyHash returns the tenant owning a key hash.
func (r *APIKeyRepository) TenantForKeyHash(_ context.Context, keyHash string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenantID, ok := r.keys[keyHash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return tenantID, nil
}
