// Package richtext holds the editable styled-text tree bound to the active
// document and the structural edits applied to it.
//
// The tree lives under a synthetic editable host <div>. Every edit is a
// Command executed through Tree.Exec; commands report whether they applied
// and never fail into the caller.
package richtext

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree is the live structural representation of a document body.
// It is not safe for concurrent use.
type Tree struct {
	root    *html.Node
	sel     Selection
	pending Style // typing styles toggled at a collapsed caret
}

// New returns an empty tree with the caret at its start.
func New() *Tree {
	t := &Tree{root: newElement(atom.Div)}
	t.sel = Caret(t.root, 0)
	return t
}

// Parse builds a tree from serialized body markup.
func Parse(body string) (*Tree, error) {
	t := New()
	if err := t.Hydrate(body); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the editable host element.
func (t *Tree) Root() *html.Node { return t.root }

// Hydrate replaces the tree content with body and moves the caret to the
// start. Pending typing styles are dropped.
func (t *Tree) Hydrate(body string) error {
	nodes, err := html.ParseFragment(strings.NewReader(body), newElement(atom.Div))
	if err != nil {
		return fmt.Errorf("parse body: %w", err)
	}
	removeChildren(t.root)
	for _, n := range nodes {
		t.root.AppendChild(n)
	}
	t.sel = Caret(t.root, 0)
	t.pending = 0
	return nil
}

// Serialize returns the markup of the tree content.
func (t *Tree) Serialize() string {
	var b strings.Builder
	for c := t.root.FirstChild; c != nil; c = c.NextSibling {
		writeNode(&b, c)
	}
	return b.String()
}

// PlainText renders the tree the way it reads on screen: one line per
// block, <br> as a newline, placeholders as spaces.
func (t *Tree) PlainText() string {
	var b strings.Builder
	lineBreak := func() {
		if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if isLayoutWhitespace(n) {
				return
			}
			b.WriteString(strings.ReplaceAll(n.Data, Placeholder, " "))
		case html.ElementNode:
			if n.DataAtom == atom.Br {
				b.WriteByte('\n')
				return
			}
			structural := isStructural(n)
			if structural {
				lineBreak()
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if structural {
				lineBreak()
			}
		}
	}
	for c := t.root.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return strings.TrimRight(b.String(), "\n")
}

// isLayoutWhitespace reports whether n is indentation between blocks.
func isLayoutWhitespace(n *html.Node) bool {
	if strings.Trim(n.Data, " \t\r\n\f") != "" {
		return false
	}
	prev, next := n.PrevSibling, n.NextSibling
	return (prev == nil || isStructural(prev)) && (next == nil || isStructural(next)) &&
		(prev != nil || next != nil)
}

// Compact drops whitespace-only text between top-level blocks.
func (t *Tree) Compact() {
	for c := t.root.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && isLayoutWhitespace(c) {
			t.root.RemoveChild(c)
		}
		c = next
	}
	t.sel = Caret(t.root, 0)
}

// Normalize rewrites markup from other sources into the tags the editor
// produces itself: <strong> and <em> become <b> and <i>, and headings deeper
// than level 3 become <h3>.
func (t *Tree) Normalize() {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Strong:
				setTag(n, atom.B)
			case atom.Em:
				setTag(n, atom.I)
			case atom.H4, atom.H5, atom.H6:
				setTag(n, atom.H3)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(t.root)
}

func setTag(n *html.Node, a atom.Atom) {
	n.DataAtom = a
	n.Data = a.String()
}

// Selection returns the current selection.
func (t *Tree) Selection() Selection { return t.sel }

// SetSelection replaces the selection. Offsets are clamped to their nodes
// and pending typing styles are dropped. Selections outside the tree clear
// the selection.
func (t *Tree) SetSelection(sel Selection) {
	t.pending = 0
	if !t.contains(sel.Anchor) || !t.contains(sel.Focus) {
		t.sel = Selection{}
		return
	}
	sel.AnchorOffset = clampOffset(sel.Anchor, sel.AnchorOffset)
	sel.FocusOffset = clampOffset(sel.Focus, sel.FocusOffset)
	t.sel = sel
}

// PendingStyle returns the typing styles toggled at the caret.
func (t *Tree) PendingStyle() Style { return t.pending }

func (t *Tree) setCaret(n *html.Node, offset int) {
	t.sel = Caret(n, offset)
}

// Command is a structural or typing edit on a Tree.
type Command interface {
	apply(t *Tree) bool
}

// Exec runs cmd and reports whether it changed anything. Without a
// selection every command is a no-op.
func (t *Tree) Exec(cmd Command) bool {
	if t.sel.IsZero() || cmd == nil {
		return false
	}
	return cmd.apply(t)
}
