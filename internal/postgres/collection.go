package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/repository"
)

// CollectionRepository implements collection.Repository over PostgreSQL.
type CollectionRepository struct {
	db *sql.DB
}

var _ collection.Repository = (*CollectionRepository)(nil)

// NewCollectionRepository constructs a repository bound to db.
func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Create inserts a collection.
func (r *CollectionRepository) Create(ctx context.Context, tenantID string, c *collection.Collection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO collections (id, tenant_id, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, tenantID, c.Name, c.Description, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}
	c.TenantID = tenantID
	return nil
}

// Get returns a collection by ID.
func (r *CollectionRepository) Get(ctx context.Context, tenantID, id string) (*collection.Collection, error) {
	return r.selectOne(ctx, `WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

// GetByName returns a collection by name.
func (r *CollectionRepository) GetByName(ctx context.Context, tenantID, name string) (*collection.Collection, error) {
	return r.selectOne(ctx, `WHERE tenant_id = $1 AND name = $2`, tenantID, name)
}

func (r *CollectionRepository) selectOne(ctx context.Context, where string, args ...any) (*collection.Collection, error) {
	var c collection.Collection
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, description, created_at FROM collections `+where, args...,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &c, nil
}

// List returns the tenant's collections with record counts.
func (r *CollectionRepository) List(ctx context.Context, tenantID string) ([]collection.CollectionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, COUNT(r.id)
		FROM collections c
		LEFT JOIN records r ON r.tenant_id = c.tenant_id AND r.collection = c.name
		WHERE c.tenant_id = $1
		GROUP BY c.id, c.name, c.description, c.created_at
		ORDER BY c.name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var out []collection.CollectionSummary
	for rows.Next() {
		var s collection.CollectionSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.RecordCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
