package journal

import (
	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/store"
)

// Tree is the editable tree as the bridge sees it.
type Tree interface {
	Serialize() string
	Hydrate(body string) error
	PlainText() string
}

// Bridge keeps the editable tree and the active document's body in step.
// Tree edits flow into the document through ContentChanged; switching the
// active document re-hydrates the tree through Rehydrate.
type Bridge struct {
	session *Session
	tree    Tree
	logger  *zap.Logger
}

// NewBridge hydrates tree from the active document and follows later
// changes of the active document.
func NewBridge(s *Session, tree Tree, logger *zap.Logger) *Bridge {
	b := &Bridge{session: s, tree: tree, logger: logger.Named("bridge")}
	b.Rehydrate(s.Active())
	s.OnActiveChange(func(d store.Document) { b.Rehydrate(d) })
	return b
}

// ContentChanged copies the serialized tree into the active document and
// queues it for persistence. It reports whether the body changed.
func (b *Bridge) ContentChanged() bool {
	return b.session.SetBody(b.tree.Serialize())
}

// Rehydrate loads d's body into the tree unless the tree already serializes
// to it, so the caret is not reset by the tree's own edits echoing back.
func (b *Bridge) Rehydrate(d store.Document) bool {
	if b.tree.Serialize() == d.Body {
		return false
	}
	if err := b.tree.Hydrate(d.Body); err != nil {
		b.logger.Error("failed to hydrate editor", zap.String("doc_id", d.ID), zap.Error(err))
		return false
	}
	return true
}

// Export renders the active document as a plain-text download.
func (b *Bridge) Export() Export {
	return NewExport(b.session.Active().Title, b.tree.PlainText())
}
