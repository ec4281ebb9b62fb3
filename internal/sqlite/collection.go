package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/repository"
)

// CollectionRepository implements collection.Repository for SQLite
type CollectionRepository struct {
	db *DB
}

var _ collection.Repository = (*CollectionRepository)(nil)

// NewCollectionRepository creates a new CollectionRepository
func NewCollectionRepository(db *DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Create creates a new collection
func (r *CollectionRepository) Create(ctx context.Context, tenantID string, c *collection.Collection) error {
	query := `
		INSERT INTO collections (id, tenant_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		tenantID,
		c.Name,
		c.Description,
		c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}

	c.TenantID = tenantID
	return nil
}

// Get retrieves a collection by ID
func (r *CollectionRepository) Get(ctx context.Context, tenantID, id string) (*collection.Collection, error) {
	return r.getBy(ctx, "id", tenantID, id)
}

// GetByName retrieves a collection by name
func (r *CollectionRepository) GetByName(ctx context.Context, tenantID, name string) (*collection.Collection, error) {
	return r.getBy(ctx, "name", tenantID, name)
}

func (r *CollectionRepository) getBy(ctx context.Context, column, tenantID, value string) (*collection.Collection, error) {
	query := `
		SELECT id, tenant_id, name, description, created_at
		FROM collections
		WHERE tenant_id = ? AND ` + column + ` = ?`

	var c collection.Collection
	err := r.db.QueryRowContext(ctx, query, tenantID, value).Scan(
		&c.ID,
		&c.TenantID,
		&c.Name,
		&c.Description,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return &c, nil
}

// List returns all collections for a tenant with record counts
func (r *CollectionRepository) List(ctx context.Context, tenantID string) ([]collection.CollectionSummary, error) {
	query := `
		SELECT
			c.id,
			c.name,
			c.description,
			c.created_at,
			COUNT(r.id) as record_count
		FROM collections c
		LEFT JOIN records r ON r.tenant_id = c.tenant_id AND r.collection = c.name
		WHERE c.tenant_id = ?
		GROUP BY c.id, c.name, c.description, c.created_at
		ORDER BY c.name
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var summaries []collection.CollectionSummary
	for rows.Next() {
		var s collection.CollectionSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}

	return summaries, nil
}
