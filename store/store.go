package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a document id is unknown to the store.
	ErrNotFound = errors.New("document not found")
	// ErrStaleWrite is returned when a patch carries a version that is not
	// newer than the stored one.
	ErrStaleWrite = errors.New("stale write")
)

// Document is one journal entry owned by a user.
type Document struct {
	ID        string
	OwnerID   string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Version counts the mutations applied by the editing session.
	Version int64
}

// Patch is a partial update. Nil fields are left untouched.
//
// A zero Version skips the version check.
type Patch struct {
	Title     *string
	Body      *string
	UpdatedAt time.Time
	Version   int64
}

// Merge folds a newer patch into p.
func (p Patch) Merge(next Patch) Patch {
	if next.Title != nil {
		p.Title = next.Title
	}
	if next.Body != nil {
		p.Body = next.Body
	}
	if next.UpdatedAt.After(p.UpdatedAt) {
		p.UpdatedAt = next.UpdatedAt
	}
	if next.Version > p.Version {
		p.Version = next.Version
	}
	return p
}

// Apply writes the patch fields into d.
func (p Patch) Apply(d *Document) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Body != nil {
		d.Body = *p.Body
	}
	if !p.UpdatedAt.IsZero() {
		d.UpdatedAt = p.UpdatedAt
	}
	if p.Version != 0 {
		d.Version = p.Version
	}
}

// stale reports whether p must be rejected against a stored version.
func (p Patch) stale(stored int64) bool {
	return p.Version != 0 && p.Version <= stored
}

// DocumentStore abstracts document persistence.
// Implementations: MemoryStore, PostgresStore, FirestoreStore, CachedStore.
type DocumentStore interface {
	// List returns the owner's documents ordered by creation time, oldest first.
	List(ctx context.Context, ownerID string) ([]Document, error)
	Insert(ctx context.Context, ownerID, title, body string) (Document, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}

// Untitled is the title of a freshly created document.
const Untitled = "Untitled"
