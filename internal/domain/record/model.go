package record

import "time"

// Fields is the business payload of a record. Records are heterogeneous
// business entities, so no schema is imposed here.
type Fields map[string]any

// Clone returns a shallow copy of the field map.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Record is a persisted business entity subject to concurrent edits.
type Record struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Collection string    `json:"collection"`
	Fields     Fields    `json:"fields"`
	Version    Version   `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordRef is a lightweight reference to a record
type RecordRef struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Version    Version   `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// Change is a proposed write. Without Replace the fields are merged over the
// stored ones; with Replace they become the complete field map.
type Change struct {
	Fields  Fields
	Replace bool
}

// Apply computes the field map that results from applying c to current.
func (c Change) Apply(current Fields) Fields {
	if c.Replace {
		out := c.Fields.Clone()
		if out == nil {
			out = Fields{}
		}
		return out
	}
	out := current.Clone()
	if out == nil {
		out = Fields{}
	}
	for k, v := range c.Fields {
		out[k] = v
	}
	return out
}
