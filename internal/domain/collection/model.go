package collection

import "time"

// DefaultName is the collection records are filed under when none is given.
const DefaultName = "default"

// Collection groups records of one business entity kind (companies, deals, ...)
type Collection struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CollectionSummary is a lightweight representation for listing
type CollectionSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
}
