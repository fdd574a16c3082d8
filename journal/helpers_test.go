package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/lastactive"
	"github.com/alimasry/go-journal-editor/store"
)

// gatedStore records update order and can hold updates to one document
// until gate is closed.
type gatedStore struct {
	*store.MemoryStore

	gateID  string
	gate    chan struct{}
	started chan string

	mu      sync.Mutex
	bodies  []string
	listErr error
}

func newGatedStore() *gatedStore {
	return &gatedStore{MemoryStore: store.NewMemoryStore(), started: make(chan string, 16)}
}

func (g *gatedStore) List(ctx context.Context, owner string) ([]store.Document, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.MemoryStore.List(ctx, owner)
}

func (g *gatedStore) Update(ctx context.Context, id string, p store.Patch) error {
	select {
	case g.started <- id:
	default:
	}
	if g.gate != nil && id == g.gateID {
		<-g.gate
	}
	if p.Body != nil {
		g.mu.Lock()
		g.bodies = append(g.bodies, *p.Body)
		g.mu.Unlock()
	}
	return g.MemoryStore.Update(ctx, id, p)
}

func (g *gatedStore) updatedBodies() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.bodies...)
}

// failingLastActive fails every call.
type failingLastActive struct{}

func (failingLastActive) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("unavailable")
}

func (failingLastActive) Set(context.Context, string, string) error {
	return errors.New("unavailable")
}

type harness struct {
	store  *gatedStore
	last   *lastactive.MemoryStore
	writer *Writer
}

func newHarness() *harness {
	gs := newGatedStore()
	return &harness{
		store:  gs,
		last:   lastactive.NewMemoryStore(),
		writer: NewWriter(gs, time.Second, zap.NewNop()),
	}
}

func (h *harness) open(t *testing.T, owner string) *Session {
	t.Helper()
	s, err := Open(context.Background(), Config{
		OwnerID:    owner,
		Store:      h.store,
		LastActive: h.last,
		Writer:     h.writer,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return s
}

func (h *harness) insert(t *testing.T, owner, title, body string) store.Document {
	t.Helper()
	d, err := h.store.Insert(context.Background(), owner, title, body)
	require.NoError(t, err)
	return d
}

func (h *harness) stored(t *testing.T, id string) store.Document {
	t.Helper()
	d, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return d
}
