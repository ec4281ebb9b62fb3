package editor

import (
	"context"
	"sync"
)

type registryKey struct {
	tenantID  string
	sessionID string
	recordID  string
}

// Registry keeps at most one editor per tenant, session and record.
type Registry struct {
	mu      sync.Mutex
	editors map[registryKey]*Editor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{editors: map[registryKey]*Editor{}}
}

// Open loads the record and registers a fresh editor for it, replacing any
// editor the session already had open on that record.
func (r *Registry) Open(ctx context.Context, store Store, tenantID, sessionID, recordID string, opts ...Option) (*Editor, error) {
	opts = append([]Option{WithSession(sessionID)}, opts...)
	e, err := Open(ctx, store, tenantID, recordID, opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.editors[registryKey{tenantID, sessionID, recordID}] = e
	r.mu.Unlock()
	return e, nil
}

// Get returns the session's open editor for a record.
func (r *Registry) Get(tenantID, sessionID, recordID string) (*Editor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.editors[registryKey{tenantID, sessionID, recordID}]
	if !ok {
		return nil, ErrEditorNotOpen
	}
	return e, nil
}

// Close drops an editor and any conflict it held.
func (r *Registry) Close(tenantID, sessionID, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey{tenantID, sessionID, recordID}
	if _, ok := r.editors[key]; !ok {
		return ErrEditorNotOpen
	}
	delete(r.editors, key)
	return nil
}

// CloseSession drops every editor a session holds and returns how many.
func (r *Registry) CloseSession(tenantID, sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key := range r.editors {
		if key.tenantID == tenantID && key.sessionID == sessionID {
			delete(r.editors, key)
			n++
		}
	}
	return n
}

// Len returns the number of open editors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}
