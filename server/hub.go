package server

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/editor"
	"github.com/alimasry/go-journal-editor/identity"
	"github.com/alimasry/go-journal-editor/journal"
	"github.com/alimasry/go-journal-editor/lastactive"
	"github.com/alimasry/go-journal-editor/store"
)

// Config holds the collaborators shared by every connection.
type Config struct {
	Store      store.DocumentStore
	LastActive lastactive.Store
	Users      identity.UserStore
	Writer     *journal.Writer
	Keys       editor.KeyMap
	// StoreTimeout bounds the store calls a connection waits on.
	StoreTimeout time.Duration
	Logger       *zap.Logger
}

// Hub tracks the connected clients. Each client owns its editing session;
// the hub counts connections and closes them on shutdown.
type Hub struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool

	// sessions counts running Session.Run goroutines.
	sessions sync.WaitGroup

	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
}

func NewHub(cfg Config) *Hub {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Hub{
		cfg:        cfg,
		logger:     cfg.Logger.Named("hub"),
		clients:    make(map[*Client]bool),
		unregister: make(chan *Client, 64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns after Close.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
		case <-h.stop:
			h.mu.Lock()
			for c := range h.clients {
				c.close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// start registers c and runs its session and pumps. It reports false,
// leaving c untouched, once the hub is closed.
func (h *Hub) start(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = true
	h.sessions.Add(1)
	go func() {
		defer h.sessions.Done()
		c.session.Run()
	}()
	go c.WritePump()
	go c.ReadPump()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
	return true
}

// Close disconnects every client, stops Run and waits for the sessions to
// finish. Calling it more than once is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	close(h.stop)
	<-h.done
	h.sessions.Wait()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
