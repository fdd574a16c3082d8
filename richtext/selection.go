package richtext

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Selection is an (anchor, focus) pair of tree positions. Offsets are byte
// offsets into text nodes and child indices into elements.
type Selection struct {
	Anchor       *html.Node
	AnchorOffset int
	Focus        *html.Node
	FocusOffset  int
}

// Caret returns a collapsed selection at (n, offset).
func Caret(n *html.Node, offset int) Selection {
	return Selection{Anchor: n, AnchorOffset: offset, Focus: n, FocusOffset: offset}
}

// Range returns a selection from (anchor, anchorOffset) to (focus, focusOffset).
func Range(anchor *html.Node, anchorOffset int, focus *html.Node, focusOffset int) Selection {
	return Selection{Anchor: anchor, AnchorOffset: anchorOffset, Focus: focus, FocusOffset: focusOffset}
}

// IsZero reports whether there is no selection at all.
func (s Selection) IsZero() bool { return s.Anchor == nil }

func (s Selection) Collapsed() bool {
	return s.Anchor == s.Focus && s.AnchorOffset == s.FocusOffset
}

// Point addresses a position by child-index path from the editable host.
// When the path ends at a text node, Offset counts UTF-16 code units the
// way DOM Range offsets do; otherwise it is a child index. Encode and
// Decode convert to and from the byte offsets Selection uses.
type Point struct {
	Path   []int `json:"path"`
	Offset int   `json:"offset"`
}

// WireSelection is the transport form of a Selection.
type WireSelection struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// Locate returns the nearest block element enclosing the selection anchor.
// Stray inline content at the top level resolves to the editable host.
// Returns nil when the anchor is missing or outside the tree.
func (t *Tree) Locate(sel Selection) *html.Node {
	return t.blockOf(sel.Anchor)
}

func (t *Tree) blockOf(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.TextNode {
		n = n.Parent
	}
	var found *html.Node
	for ; n != nil; n = n.Parent {
		if found == nil && IsBlock(n) {
			found = n
		}
		if n == t.root {
			return found
		}
	}
	return nil
}

func (t *Tree) contains(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == t.root {
			return true
		}
	}
	return false
}

// EncodeSelection converts sel to its wire form.
func (t *Tree) EncodeSelection(sel Selection) (WireSelection, error) {
	anchor, err := t.pointOf(sel.Anchor, sel.AnchorOffset)
	if err != nil {
		return WireSelection{}, err
	}
	focus, err := t.pointOf(sel.Focus, sel.FocusOffset)
	if err != nil {
		return WireSelection{}, err
	}
	return WireSelection{Anchor: anchor, Focus: focus}, nil
}

func (t *Tree) pointOf(n *html.Node, offset int) (Point, error) {
	if !t.contains(n) {
		return Point{}, fmt.Errorf("node outside editable tree")
	}
	var path []int
	for p := n; p != t.root; p = p.Parent {
		path = append([]int{indexOf(p)}, path...)
	}
	offset = clampOffset(n, offset)
	if n.Type == html.TextNode {
		offset = utf16Offset(n.Data, offset)
	}
	return Point{Path: path, Offset: offset}, nil
}

// DecodeSelection resolves a wire selection against the current tree.
func (t *Tree) DecodeSelection(w WireSelection) (Selection, error) {
	anchor, aOff, err := t.resolve(w.Anchor)
	if err != nil {
		return Selection{}, fmt.Errorf("anchor: %w", err)
	}
	focus, fOff, err := t.resolve(w.Focus)
	if err != nil {
		return Selection{}, fmt.Errorf("focus: %w", err)
	}
	return Range(anchor, aOff, focus, fOff), nil
}

func (t *Tree) resolve(p Point) (*html.Node, int, error) {
	n := t.root
	for depth, i := range p.Path {
		c := childAt(n, i)
		if i < 0 || c == nil {
			return nil, 0, fmt.Errorf("no child %d at depth %d", i, depth)
		}
		n = c
	}
	if n.Type == html.TextNode && p.Offset > 0 {
		return n, byteOffset(n.Data, p.Offset), nil
	}
	return n, clampOffset(n, p.Offset), nil
}

// utf16Offset converts byte offset off in s to UTF-16 code units.
func utf16Offset(s string, off int) int {
	units := 0
	for _, r := range s[:off] {
		units += utf16.RuneLen(r)
	}
	return units
}

// byteOffset converts a count of UTF-16 code units in s to a byte offset.
// A count ending inside a surrogate pair resolves to the start of that
// rune.
func byteOffset(s string, units int) int {
	n := 0
	for i, r := range s {
		n += utf16.RuneLen(r)
		if n > units {
			return i
		}
	}
	return len(s)
}

// clampOffset bounds offset to n and moves text offsets back onto a rune
// boundary.
func clampOffset(n *html.Node, offset int) int {
	if offset < 0 {
		return 0
	}
	if n.Type != html.TextNode {
		if c := childCount(n); offset > c {
			return c
		}
		return offset
	}
	if offset > len(n.Data) {
		return len(n.Data)
	}
	for offset > 0 && offset < len(n.Data) && !utf8.RuneStart(n.Data[offset]) {
		offset--
	}
	return offset
}

// leaf is a text node with its starting offset in the concatenated text of
// the tree.
type leaf struct {
	node  *html.Node
	start int
}

func (l leaf) end() int { return l.start + len(l.node.Data) }

func (t *Tree) leaves() []leaf {
	var out []leaf
	pos := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, leaf{node: n, start: pos})
			pos += len(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// offsetOf maps a tree position to an offset in the concatenated text.
func (t *Tree) offsetOf(target *html.Node, offset int) (int, bool) {
	pos, found := 0, -1
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.TextNode {
			if n == target {
				found = pos + clampOffset(n, offset)
				return true
			}
			pos += len(n.Data)
			return false
		}
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if n == target && i == offset {
				found = pos
				return true
			}
			if walk(c) {
				return true
			}
			i++
		}
		if n == target {
			found = pos
			return true
		}
		return false
	}
	walk(t.root)
	return found, found >= 0
}

// pointAt maps a text offset back to a text node position. On a boundary
// between two text nodes, forward picks the later node.
func (t *Tree) pointAt(offset int, forward bool) (*html.Node, int, bool) {
	ls := t.leaves()
	if forward {
		for _, l := range ls {
			if l.start <= offset && offset < l.end() {
				return l.node, offset - l.start, true
			}
		}
		for i := len(ls) - 1; i >= 0; i-- {
			if ls[i].end() == offset {
				return ls[i].node, len(ls[i].node.Data), true
			}
		}
		return nil, 0, false
	}
	for _, l := range ls {
		if l.start < offset && offset <= l.end() {
			return l.node, offset - l.start, true
		}
	}
	for _, l := range ls {
		if l.start == offset {
			return l.node, 0, true
		}
	}
	return nil, 0, false
}
