package collection

import "context"

// Repository provides persistence for collections.
type Repository interface {
	Create(ctx context.Context, tenantID string, c *Collection) error
	Get(ctx context.Context, tenantID, id string) (*Collection, error)
	GetByName(ctx context.Context, tenantID, name string) (*Collection, error)
	List(ctx context.Context, tenantID string) ([]CollectionSummary, error)
}
