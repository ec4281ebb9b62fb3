package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/obelixia/reclock/internal/repository"
)

// APIKeyRepository stores hashed API keys.
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository constructs a repository bound to db.
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Add stores a key hash for a tenant.
func (r *APIKeyRepository) Add(ctx context.Context, tenantID, keyHash, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, tenant_id, description) VALUES ($1, $2, $3)`,
		keyHash, tenantID, description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

// TenantForKeyHash resolves a key hash and records its use.
func (r *APIKeyRepository) TenantForKeyHash(ctx context.Context, keyHash string) (string, error) {
	var tenantID string
	err := r.db.QueryRowContext(ctx,
		`UPDATE api_keys SET last_used = now() WHERE key_hash = $1 RETURNING tenant_id`, keyHash,
	).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up api key: %w", err)
	}
	return tenantID, nil
}
