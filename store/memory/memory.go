// Package memory provides an in-process store.EntityStore.
//
// It implements the same versioned optimistic concurrency as the DynamoDB
// store: transactions read without holding the lock and validate every
// version they observed when they commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jacentio/conference/store"
)

// Store is an in-memory EntityStore. The zero value is not usable; call New.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]*store.Document
	nextID   int64
	config   store.Config
	registry *store.Registry
}

var _ store.EntityStore = (*Store)(nil)

// New returns an empty Store. registry may be nil.
func New(cfg store.Config, registry *store.Registry) *Store {
	cfg.Validate()
	return &Store{
		docs:     make(map[string]*store.Document),
		config:   cfg,
		registry: registry,
	}
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns a copy of the stored document.
func (s *Store) Get(_ context.Context, key *store.Key) (*store.Document, error) {
	if key == nil {
		return nil, store.ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key.Path()]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc.Clone(), nil
}

// GetMulti returns copies of the stored documents aligned with keys.
func (s *Store) GetMulti(_ context.Context, keys []*store.Key) ([]*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Document, len(keys))
	for i, k := range keys {
		if k == nil {
			continue
		}
		if doc, ok := s.docs[k.Path()]; ok {
			out[i] = doc.Clone()
		}
	}
	return out, nil
}

// Put writes doc if the stored version equals doc.Version.
func (s *Store) Put(_ context.Context, doc *store.Document) error {
	if doc == nil || doc.Key == nil {
		return store.ErrInvalidKey
	}
	if err := s.registry.Validate(doc.Key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := doc.Key.Path()
	if s.version(path) != doc.Version {
		return store.ErrConcurrentModification
	}
	stored := doc.Clone()
	stored.Version++
	s.docs[path] = stored
	doc.Version = stored.Version
	return nil
}

// AllocateChildID returns the next value of a store-wide counter.
func (s *Store) AllocateChildID(_ context.Context, parent *store.Key) (string, error) {
	if parent != nil {
		if err := s.registry.Validate(parent); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return strconv.FormatInt(s.nextID, 10), nil
}

// Query scans every document and applies q.
func (s *Store) Query(_ context.Context, q *store.Query) ([]*store.Document, error) {
	if q == nil || q.Kind == "" {
		return nil, fmt.Errorf("query without kind: %w", store.ErrInvalidKey)
	}
	s.mu.RLock()
	candidates := make([]*store.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if doc.Key.Kind == q.Kind {
			candidates = append(candidates, doc.Clone())
		}
	}
	s.mu.RUnlock()
	return q.Apply(candidates), nil
}

// RunTransaction runs fn and commits its writes if no document it read or
// wrote changed since it was read, retrying on conflict.
func (s *Store) RunTransaction(ctx context.Context, fn store.TxFunc) error {
	return store.RunWithRetry(ctx, s.config, func(ctx context.Context) error {
		tx := &transaction{
			s:      s,
			reads:  make(map[string]int64),
			writes: make(map[string]*store.Document),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.commit()
	})
}

// version returns the stored version of path, 0 if absent. Callers hold mu.
func (s *Store) version(path string) int64 {
	if doc, ok := s.docs[path]; ok {
		return doc.Version
	}
	return 0
}

type transaction struct {
	s      *Store
	reads  map[string]int64
	writes map[string]*store.Document
	order  []string
}

func (t *transaction) Get(ctx context.Context, key *store.Key) (*store.Document, error) {
	if key == nil {
		return nil, store.ErrInvalidKey
	}
	path := key.Path()
	if doc, ok := t.writes[path]; ok {
		return doc.Clone(), nil
	}

	doc, err := t.s.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, seen := t.reads[path]; !seen {
			t.reads[path] = 0
		}
		return nil, err
	case err != nil:
		return nil, err
	}

	if v, seen := t.reads[path]; seen && v != doc.Version {
		return nil, store.ErrConcurrentModification
	}
	t.reads[path] = doc.Version
	return doc, nil
}

func (t *transaction) Put(doc *store.Document) {
	path := doc.Key.Path()
	if _, ok := t.writes[path]; !ok {
		t.order = append(t.order, path)
	}
	t.writes[path] = doc.Clone()
}

func (t *transaction) commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	for _, path := range t.order {
		if err := t.s.registry.Validate(t.writes[path].Key); err != nil {
			return err
		}
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for path, v := range t.reads {
		if t.s.version(path) != v {
			return store.ErrConcurrentModification
		}
	}
	for _, path := range t.order {
		if _, read := t.reads[path]; read {
			continue
		}
		if t.s.version(path) != t.writes[path].Version {
			return store.ErrConcurrentModification
		}
	}

	for _, path := range t.order {
		doc := t.writes[path].Clone()
		doc.Version = t.s.version(path) + 1
		t.s.docs[path] = doc
	}
	return nil
}
