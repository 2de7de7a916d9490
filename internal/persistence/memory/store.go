// Package memory provides an in-process document store for local development and tests.
package memory

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"example.com/fittrack/internal/persistence"
)

// Store keeps documents in memory, guarded by a RWMutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]map[string]any)}
}

// Read implements persistence.Store.
func (s *Store) Read(ctx context.Context, collection, id string) (persistence.Document, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return persistence.Document{}, persistence.ErrNotFound
	}
	return persistence.Document{ID: id, Fields: persistence.CloneFields(doc)}, nil
}

// Write implements persistence.Store.
func (s *Store) Write(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var base map[string]any
	if merge {
		base = persistence.CloneFields(s.collections[collection][id])
	}
	next, err := persistence.ApplyMerge(base, fields)
	if err != nil {
		return err
	}
	s.put(collection, id, next)
	return nil
}

// Insert implements persistence.Store and returns a generated document id.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := persistence.ApplyMerge(nil, fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.put(collection, id, doc)
	return id, nil
}

// QueryByField implements persistence.Store. Results are ordered by document id.
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]persistence.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Document, 0)
	for id, doc := range s.collections[collection] {
		if current, ok := doc[field]; ok && reflect.DeepEqual(current, value) {
			out = append(out, persistence.Document{ID: id, Fields: persistence.CloneFields(doc)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) put(collection, id string, doc map[string]any) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[collection] = docs
	}
	docs[id] = doc
}
