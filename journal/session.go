// Package journal holds the per-user editing session: the ordered document
// collection, the active document, and the bridge keeping the editable tree
// and the active document's body in step.
package journal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/lastactive"
	"github.com/alimasry/go-journal-editor/store"
)

var (
	// ErrLastDocument rejects deleting a user's only document.
	ErrLastDocument = errors.New("cannot delete the only document")
	// ErrUnknownDocument is returned for ids outside the session's collection.
	ErrUnknownDocument = errors.New("unknown document")
)

// Config wires a Session to its collaborators.
type Config struct {
	OwnerID    string
	Store      store.DocumentStore
	LastActive lastactive.Store
	Writer     *Writer
	Logger     *zap.Logger
}

// Session is one user's view of their journal. It is confined to a single
// goroutine: mutations update the in-memory collection at once and hand the
// store write to the Writer.
type Session struct {
	owner  string
	store  store.DocumentStore
	last   lastactive.Store
	writer *Writer
	logger *zap.Logger
	now    func() time.Time

	docs      []store.Document
	active    string
	listeners []func(store.Document)
}

// Open loads the owner's documents, creating an "Untitled" one when there
// are none, and activates the remembered document or the oldest one.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{
		owner:  cfg.OwnerID,
		store:  cfg.Store,
		last:   cfg.LastActive,
		writer: cfg.Writer,
		logger: cfg.Logger.Named("session").With(zap.String("owner_id", cfg.OwnerID)),
		now:    time.Now,
	}

	docs, err := s.store.List(ctx, s.owner)
	if err != nil {
		return nil, errors.Wrap(err, "load documents")
	}
	if len(docs) == 0 {
		d, err := s.store.Insert(ctx, s.owner, store.Untitled, "")
		if err != nil {
			return nil, errors.Wrap(err, "create first document")
		}
		docs = []store.Document{d}
	}
	s.docs = docs

	active := docs[0].ID
	if id, ok, err := s.last.Get(ctx, s.owner); err != nil {
		s.logger.Warn("failed to read last-active document", zap.Error(err))
	} else if ok && s.index(id) >= 0 {
		active = id
	}
	s.activate(ctx, active)
	return s, nil
}

// Docs returns the collection in creation order.
func (s *Session) Docs() []store.Document {
	out := make([]store.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

func (s *Session) ActiveID() string { return s.active }

// Active returns the active document.
func (s *Session) Active() store.Document {
	return s.docs[s.index(s.active)]
}

func (s *Session) OwnerID() string { return s.owner }

// OnActiveChange registers fn to run whenever a different document becomes
// active.
func (s *Session) OnActiveChange(fn func(store.Document)) {
	s.listeners = append(s.listeners, fn)
}

func (s *Session) index(id string) int {
	for i := range s.docs {
		if s.docs[i].ID == id {
			return i
		}
	}
	return -1
}

// activate makes id active, remembers it and notifies listeners when it
// changed.
func (s *Session) activate(ctx context.Context, id string) {
	changed := id != s.active
	s.active = id
	if err := s.last.Set(ctx, s.owner, id); err != nil {
		s.logger.Warn("failed to remember last-active document", zap.String("doc_id", id), zap.Error(err))
	}
	if !changed {
		return
	}
	d := s.Active()
	for _, fn := range s.listeners {
		fn(d)
	}
}

// Create inserts an empty "Untitled" document and makes it active.
func (s *Session) Create(ctx context.Context) (store.Document, error) {
	return s.CreateWithBody(ctx, store.Untitled, "")
}

// CreateWithBody inserts a document with the given content, appends it to
// the collection and makes it active.
func (s *Session) CreateWithBody(ctx context.Context, title, body string) (store.Document, error) {
	d, err := s.store.Insert(ctx, s.owner, title, body)
	if err != nil {
		s.logger.Error("failed to create document", zap.Error(err))
		return store.Document{}, errors.Wrap(err, "create document")
	}
	s.docs = append(s.docs, d)
	s.activate(ctx, d.ID)
	return d, nil
}

// Select makes id the active document.
func (s *Session) Select(ctx context.Context, id string) error {
	if s.index(id) < 0 {
		return errors.Wrapf(ErrUnknownDocument, "select %q", id)
	}
	s.activate(ctx, id)
	return nil
}

// Rename sets the title of document id.
func (s *Session) Rename(id, title string) error {
	i := s.index(id)
	if i < 0 {
		return errors.Wrapf(ErrUnknownDocument, "rename %q", id)
	}
	d := &s.docs[i]
	d.Title = title
	s.touch(d)
	s.writer.Update(id, store.Patch{Title: &title, UpdatedAt: d.UpdatedAt, Version: d.Version})
	return nil
}

// SetBody stores body as the active document's content. It reports false
// when the body is unchanged and nothing was written.
func (s *Session) SetBody(body string) bool {
	d := &s.docs[s.index(s.active)]
	if d.Body == body {
		return false
	}
	d.Body = body
	s.touch(d)
	s.writer.Update(d.ID, store.Patch{Body: &body, UpdatedAt: d.UpdatedAt, Version: d.Version})
	return true
}

// Delete removes document id. The only remaining document cannot be
// deleted. Deleting the active document activates the oldest remaining one.
func (s *Session) Delete(ctx context.Context, id string) error {
	i := s.index(id)
	if i < 0 {
		return errors.Wrapf(ErrUnknownDocument, "delete %q", id)
	}
	if len(s.docs) <= 1 {
		return ErrLastDocument
	}
	s.docs = append(s.docs[:i], s.docs[i+1:]...)
	s.writer.Delete(id)
	if id == s.active {
		s.activate(ctx, s.docs[0].ID)
	}
	return nil
}

func (s *Session) touch(d *store.Document) {
	d.UpdatedAt = s.now().UTC()
	d.Version++
}
