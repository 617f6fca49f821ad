package datastore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/rowjay/docbackup/internal/document"
)

// Memory is an in-process Datastore. Collections are listed alphabetically.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]document.Document
}

func NewMemory() *Memory {
	return &Memory{collections: map[string][]document.Document{}}
}

// Seed replaces the contents of a collection, creating it if needed.
func (m *Memory) Seed(collection string, docs ...document.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = cloneDocs(docs)
}

func (m *Memory) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) GetAllDocuments(ctx context.Context, collection string) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDocs(m.collections[collection]), nil
}

func (m *Memory) DeleteAllDocuments(ctx context.Context, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = []document.Document{}
	return nil
}

func (m *Memory) InsertMany(ctx context.Context, collection string, docs []document.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], cloneDocs(docs)...)
	return nil
}

func cloneDocs(docs []document.Document) []document.Document {
	out := make([]document.Document, len(docs))
	for i, d := range docs {
		out[i] = bytes.Clone(d)
	}
	return out
}
