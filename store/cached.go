package store

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CachedStore wraps a backing DocumentStore with write-behind updates.
// Updates are coalesced per document in memory and flushed to the backing
// store periodically in the background. Inserts and deletes go straight
// through because the backing store assigns ids.
type CachedStore struct {
	backing       DocumentStore
	logger        *zap.Logger
	mu            sync.Mutex
	pending       map[string]Patch
	versions      map[string]int64 // newest version accepted per document
	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewCachedStore creates a CachedStore that flushes pending updates to
// the backing store every flushInterval.
func NewCachedStore(backing DocumentStore, flushInterval time.Duration, logger *zap.Logger) *CachedStore {
	cs := &CachedStore{
		backing:       backing,
		logger:        logger.Named("cached-store"),
		pending:       make(map[string]Patch),
		versions:      make(map[string]int64),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

// List reads from the backing store and overlays updates not yet flushed.
func (cs *CachedStore) List(ctx context.Context, ownerID string) ([]Document, error) {
	docs, err := cs.backing.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for i := range docs {
		if p, ok := cs.pending[docs[i].ID]; ok {
			p.Apply(&docs[i])
		}
		if docs[i].Version > cs.versions[docs[i].ID] {
			cs.versions[docs[i].ID] = docs[i].Version
		}
	}
	return docs, nil
}

func (cs *CachedStore) Insert(ctx context.Context, ownerID, title, body string) (Document, error) {
	return cs.backing.Insert(ctx, ownerID, title, body)
}

// Update queues patch for the next flush.
func (cs *CachedStore) Update(_ context.Context, id string, patch Patch) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if patch.stale(cs.versions[id]) {
		return errors.Wrapf(ErrStaleWrite, "document %q at version %d, patch version %d", id, cs.versions[id], patch.Version)
	}
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now()
	}
	if patch.Version > cs.versions[id] {
		cs.versions[id] = patch.Version
	}
	if cur, ok := cs.pending[id]; ok {
		patch = cur.Merge(patch)
	}
	cs.pending[id] = patch
	return nil
}

func (cs *CachedStore) Delete(ctx context.Context, id string) error {
	cs.mu.Lock()
	delete(cs.pending, id)
	delete(cs.versions, id)
	cs.mu.Unlock()
	return cs.backing.Delete(ctx, id)
}

// Pending returns the number of documents with unflushed updates.
func (cs *CachedStore) Pending() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.pending)
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush writes all pending patches to the backing store. Patches that fail
// with a transient error are queued again underneath any newer patch.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	snapshot := cs.pending
	cs.pending = make(map[string]Patch, len(snapshot))
	cs.mu.Unlock()

	ctx := context.Background()

	for id, patch := range snapshot {
		err := cs.backing.Update(ctx, id, patch)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrStaleWrite):
			cs.logger.Warn("dropping update", zap.String("doc_id", id), zap.Error(err))
		default:
			cs.logger.Error("failed to flush update, will retry", zap.String("doc_id", id), zap.Error(err))
			cs.mu.Lock()
			if newer, ok := cs.pending[id]; ok {
				patch = patch.Merge(newer)
			}
			cs.pending[id] = patch
			cs.mu.Unlock()
		}
	}
}

// Close signals the flush loop to perform a final flush and waits for it
// to complete.
func (cs *CachedStore) Close() {
	close(cs.stop)
	<-cs.done
}
