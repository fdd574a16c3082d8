package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

// MemoryStore is an in-memory implementation of DocumentStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document), now: time.Now}
}

func (s *MemoryStore) List(_ context.Context, ownerID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Document, 0)
	for _, d := range s.docs {
		if d.OwnerID == ownerID {
			result = append(result, *d)
		}
	}
	sortByCreation(result)
	return result, nil
}

// sortByCreation orders documents oldest first. Ids break ties; ULIDs and
// database sequences both sort in creation order.
func sortByCreation(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

func (s *MemoryStore) Insert(_ context.Context, ownerID, title, body string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	d := &Document{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.docs[d.ID] = d
	return *d, nil
}

// Get returns a copy of the document with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return Document{}, errors.Wrapf(ErrNotFound, "document %q", id)
	}
	return *d, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "document %q", id)
	}
	if patch.stale(d.Version) {
		return errors.Wrapf(ErrStaleWrite, "document %q at version %d, patch version %d", id, d.Version, patch.Version)
	}
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = s.now()
	}
	patch.Apply(d)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return errors.Wrapf(ErrNotFound, "document %q", id)
	}
	delete(s.docs, id)
	return nil
}
