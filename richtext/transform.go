package richtext

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PromoteToHeading turns a block into a heading. A heading left without
// visible text gets a single Placeholder and the caret at its start.
// Block defaults to the block at the selection. DropText discards the
// block's text first, as the markdown shortcut does with its marker.
type PromoteToHeading struct {
	Block    *html.Node
	Level    int
	DropText bool
}

func (c PromoteToHeading) apply(t *Tree) bool {
	return t.PromoteToHeading(t.target(c.Block), c.Level, c.DropText)
}

// SplitHeading opens an empty paragraph after a heading and moves the
// caret into it. Heading defaults to the block at the selection.
type SplitHeading struct {
	Heading *html.Node
}

func (c SplitHeading) apply(t *Tree) bool {
	return t.SplitHeadingOnEnter(t.target(c.Heading))
}

// SetBlockTag retags a block as a paragraph or heading without touching
// its content.
type SetBlockTag struct {
	Block *html.Node
	Tag   atom.Atom
}

func (c SetBlockTag) apply(t *Tree) bool {
	return t.SetBlockTag(t.target(c.Block), c.Tag)
}

// ToggleInline toggles an inline style on the selection.
type ToggleInline struct {
	Style Style
}

func (c ToggleInline) apply(t *Tree) bool { return t.ToggleInline(c.Style) }

// InsertText types text at the caret, replacing any selected text.
type InsertText struct {
	Text string
}

func (c InsertText) apply(t *Tree) bool { return t.InsertText(c.Text) }

// InsertParagraph splits the block at the caret.
type InsertParagraph struct{}

func (InsertParagraph) apply(t *Tree) bool { return t.InsertParagraph() }

func (t *Tree) target(block *html.Node) *html.Node {
	if block != nil {
		return block
	}
	return t.Locate(t.sel)
}

// PromoteToHeading retags block as a heading of level (clamped to 1-3).
func (t *Tree) PromoteToHeading(block *html.Node, level int, dropText bool) bool {
	if t.sel.IsZero() || !t.contains(block) || !IsBlock(block) {
		return false
	}
	h := t.retag(block, HeadingTag(level))
	if dropText {
		removeChildren(h)
	}
	if !hasVisibleContent(h) {
		removeChildren(h)
		text := &html.Node{Type: html.TextNode, Data: Placeholder}
		h.AppendChild(text)
		t.setCaret(text, 0)
	}
	return true
}

// SplitHeadingOnEnter inserts <p><br></p> after heading and puts the caret
// inside it. The heading itself is left as it is.
func (t *Tree) SplitHeadingOnEnter(heading *html.Node) bool {
	if t.sel.IsZero() || !t.contains(heading) || HeadingLevel(heading) == 0 {
		return false
	}
	p := newElement(atom.P)
	p.AppendChild(newElement(atom.Br))
	heading.Parent.InsertBefore(p, heading.NextSibling)
	t.setCaret(p, 0)
	t.pending = 0
	return true
}

// SetBlockTag retags block as tag, which must be p or h1-h3.
func (t *Tree) SetBlockTag(block *html.Node, tag atom.Atom) bool {
	switch tag {
	case atom.P, atom.H1, atom.H2, atom.H3:
	default:
		return false
	}
	if t.sel.IsZero() || !t.contains(block) || !IsBlock(block) {
		return false
	}
	t.retag(block, tag)
	return true
}

// retag changes the tag of block in place. The editable host is never
// retagged: the inline run around the caret is wrapped into a new element
// instead.
func (t *Tree) retag(block *html.Node, tag atom.Atom) *html.Node {
	if block != t.root {
		setTag(block, tag)
		return block
	}
	return t.wrapRun(tag)
}

// wrapRun moves the host-level inline run at the caret into a new element
// of tag and keeps the caret on the same text position.
func (t *Tree) wrapRun(tag atom.Atom) *html.Node {
	el := newElement(tag)
	offset, hasOffset := t.offsetOf(t.sel.Anchor, t.sel.AnchorOffset)
	r, ok := t.runAtCaret()
	if !ok || r.parent != t.root {
		idx := childCount(t.root)
		if t.sel.Anchor == t.root {
			idx = t.sel.AnchorOffset
		}
		t.root.InsertBefore(el, childAt(t.root, idx))
		t.setCaret(el, 0)
		return el
	}
	t.root.InsertBefore(el, r.first)
	for _, n := range r.nodes() {
		t.root.RemoveChild(n)
		el.AppendChild(n)
	}
	if t.sel.Anchor.Type != html.TextNode && hasOffset {
		if n, off, found := t.pointAt(offset, true); found {
			t.setCaret(n, off)
		} else {
			t.setCaret(el, 0)
		}
	}
	return el
}

// runAtCaret returns the inline run the caret sits in.
func (t *Tree) runAtCaret() (run, bool) {
	n, off := t.sel.Anchor, t.sel.AnchorOffset
	if n == nil {
		return run{}, false
	}
	if n.Type == html.TextNode || !isStructural(n) {
		return runOf(n), true
	}
	if c := childAt(n, off); c != nil && !isStructural(c) {
		return runOf(c), true
	}
	if off > 0 {
		if c := childAt(n, off-1); c != nil && !isStructural(c) {
			return runOf(c), true
		}
	}
	return run{}, false
}

// runStart returns the text offset where r begins.
func (t *Tree) runStart(r run) int {
	start, _ := t.offsetOf(r.parent, indexOf(r.first))
	return start
}
