package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps documents in-process. It backs tests and throwaway sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string][]byte)}
}

// Get returns a copy of the stored document.
func (m *MemoryStore) Get(_ context.Context, table, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.tables[table][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

// GetAll returns matching documents ordered by ID.
func (m *MemoryStore) GetAll(_ context.Context, table string, filter Filter) ([][]byte, error) {
	m.mu.RLock()
	rows := m.tables[table]
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([][]byte, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, append([]byte(nil), rows[id]...))
	}
	m.mu.RUnlock()
	return filterDocs(docs, filter)
}

// Put stores or replaces a document.
func (m *MemoryStore) Put(_ context.Context, table, id string, doc []byte) error {
	if err := checkKey(table, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[table] == nil {
		m.tables[table] = make(map[string][]byte)
	}
	m.tables[table][id] = append([]byte(nil), doc...)
	return nil
}

// Patch overwrites selected top-level fields of an existing document.
func (m *MemoryStore) Patch(_ context.Context, table, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.tables[table][id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeFields(doc, fields)
	if err != nil {
		return err
	}
	m.tables[table][id] = merged
	return nil
}

// Delete removes a document.
func (m *MemoryStore) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table][id]; !ok {
		return ErrNotFound
	}
	delete(m.tables[table], id)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
