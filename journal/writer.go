package journal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/store"
)

// Writer delivers store writes in issue order per document. Each document
// with queued writes has one goroutine draining its queue; writes to
// different documents proceed independently. Failures are logged and the
// write is dropped.
type Writer struct {
	store   store.DocumentStore
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	queues map[string][]write
	wg     sync.WaitGroup
}

type write struct {
	patch  store.Patch
	delete bool
}

// NewWriter returns a Writer that gives each store call timeout to finish.
func NewWriter(s store.DocumentStore, timeout time.Duration, logger *zap.Logger) *Writer {
	return &Writer{
		store:   s,
		logger:  logger.Named("writer"),
		timeout: timeout,
		queues:  make(map[string][]write),
	}
}

// Update queues patch for document id.
func (w *Writer) Update(id string, patch store.Patch) {
	w.enqueue(id, write{patch: patch})
}

// Delete queues the removal of document id after its pending updates.
func (w *Writer) Delete(id string) {
	w.enqueue(id, write{delete: true})
}

func (w *Writer) enqueue(id string, wr write) {
	w.mu.Lock()
	defer w.mu.Unlock()

	q := w.queues[id]
	w.queues[id] = append(q, wr)
	if len(q) == 0 {
		w.wg.Add(1)
		go w.drain(id)
	}
}

// drain runs the queue of id until it is empty. The head of the queue stays
// in place while it runs so enqueue never starts a second drainer.
func (w *Writer) drain(id string) {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		q := w.queues[id]
		if len(q) == 0 {
			delete(w.queues, id)
			w.mu.Unlock()
			return
		}
		wr := q[0]
		w.mu.Unlock()

		w.run(id, wr)

		w.mu.Lock()
		w.queues[id] = w.queues[id][1:]
		w.mu.Unlock()
	}
}

func (w *Writer) run(id string, wr write) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if wr.delete {
		if err := w.store.Delete(ctx, id); err != nil {
			w.logger.Error("failed to delete document", zap.String("doc_id", id), zap.Error(err))
		}
		return
	}
	if err := w.store.Update(ctx, id, wr.patch); err != nil {
		w.logger.Error("failed to update document",
			zap.String("doc_id", id),
			zap.Int64("version", wr.patch.Version),
			zap.Error(err))
	}
}

// Pending returns the number of writes queued or in flight.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, q := range w.queues {
		n += len(q)
	}
	return n
}

// Wait blocks until every queued write has been delivered.
func (w *Writer) Wait() {
	w.wg.Wait()
}
