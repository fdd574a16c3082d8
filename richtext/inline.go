package richtext

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// span is a run together with its text offset in the tree.
type span struct {
	run   run
	start int
}

// orderedSelection returns the selection as text offsets, start first.
// backward is set when the focus precedes the anchor.
func (t *Tree) orderedSelection() (from, to int, backward, ok bool) {
	a, okA := t.offsetOf(t.sel.Anchor, t.sel.AnchorOffset)
	f, okF := t.offsetOf(t.sel.Focus, t.sel.FocusOffset)
	if !okA || !okF {
		return 0, 0, false, false
	}
	if a > f {
		return f, a, true, true
	}
	return a, f, false, true
}

// spansBetween returns, in document order, every run holding text in
// [from, to).
func (t *Tree) spansBetween(from, to int) []span {
	var out []span
	seen := make(map[*html.Node]bool)
	for _, l := range t.leaves() {
		if l.end() <= from || l.start >= to || len(l.node.Data) == 0 {
			continue
		}
		r := runOf(l.node)
		if seen[r.first] {
			continue
		}
		seen[r.first] = true
		out = append(out, span{run: r, start: t.runStart(r)})
	}
	return out
}

// ToggleInline toggles style on the selected text. A collapsed selection
// flips the style for the next typed characters instead. The selection
// is added to when any selected character lacks the style and removed
// otherwise, so toggling twice restores the previous markup.
func (t *Tree) ToggleInline(style Style) bool {
	if t.sel.IsZero() || style == 0 {
		return false
	}
	from, to, backward, ok := t.orderedSelection()
	if !ok {
		return false
	}
	if from == to {
		t.pending ^= style
		return true
	}
	spans := t.spansBetween(from, to)
	if len(spans) == 0 {
		return false
	}
	segs := make([][]segment, len(spans))
	on := false
	for i, s := range spans {
		segs[i] = flatten(s.run)
		lo, hi := localRange(s, segs[i], from, to)
		if !styled(segs[i], lo, hi, style) {
			on = true
		}
	}
	for i, s := range spans {
		lo, hi := localRange(s, segs[i], from, to)
		s.run.replace(render(restyle(segs[i], lo, hi, style, on)))
	}
	t.reselect(from, to, backward)
	return true
}

func localRange(s span, segs []segment, from, to int) (int, int) {
	lo, hi := from-s.start, to-s.start
	if lo < 0 {
		lo = 0
	}
	if n := textLen(segs); hi > n {
		hi = n
	}
	return lo, hi
}

// reselect selects the text range [from, to) again after its nodes were
// rebuilt.
func (t *Tree) reselect(from, to int, backward bool) {
	start, startOff, ok1 := t.pointAt(from, true)
	end, endOff, ok2 := t.pointAt(to, false)
	if !ok1 || !ok2 {
		t.sel = Caret(t.root, 0)
		return
	}
	if backward {
		t.sel = Range(end, endOff, start, startOff)
		return
	}
	t.sel = Range(start, startOff, end, endOff)
}

// InsertText types text at the caret inside the inline elements of the
// preceding character, with bold and italic adjusted by any pending typing
// toggles.
func (t *Tree) InsertText(text string) bool {
	if t.sel.IsZero() || text == "" {
		return false
	}
	if !t.sel.Collapsed() {
		pending := t.pending
		t.deleteSelection()
		t.pending = pending
	}
	if block := t.Locate(t.sel); block != nil && block != t.root && HeadingLevel(block) > 0 &&
		TextContent(block) == Placeholder {
		removeChildren(block)
		t.setCaret(block, 0)
	}
	pending := t.pending
	t.pending = 0

	r, ok := t.runAtCaret()
	if !ok {
		parent, idx := t.sel.Anchor, t.sel.AnchorOffset
		if parent == t.root {
			p := newElement(atom.P)
			t.root.InsertBefore(p, childAt(t.root, idx))
			parent, idx = p, 0
		}
		nodes := render([]segment{segment{text: text}.toggled(pending)})
		next := childAt(parent, idx)
		for _, n := range nodes {
			parent.InsertBefore(n, next)
		}
		t.caretAfter(nodes[len(nodes)-1])
		return true
	}

	at, ok := t.offsetOf(t.sel.Anchor, t.sel.AnchorOffset)
	if !ok {
		return false
	}
	start := t.runStart(r)
	segs := flatten(r)
	seg := segment{text: text, layers: layersAt(segs, at-start)}.toggled(pending)
	r.replace(render(insertSegment(segs, at-start, seg)))
	if n, off, found := t.pointAt(at+len(text), false); found {
		t.setCaret(n, off)
	}
	return true
}

// caretAfter puts the caret at the end of the last text node below n.
func (t *Tree) caretAfter(n *html.Node) {
	for n.Type != html.TextNode && n.LastChild != nil {
		n = n.LastChild
	}
	if n.Type == html.TextNode {
		t.setCaret(n, len(n.Data))
		return
	}
	t.setCaret(n.Parent, indexOf(n)+1)
}

// deleteSelection removes the selected text run by run. Blocks are not
// merged; a block emptied by the deletion keeps a <br>.
func (t *Tree) deleteSelection() {
	from, to, _, ok := t.orderedSelection()
	if !ok || from == to {
		return
	}
	for _, s := range t.spansBetween(from, to) {
		segs := flatten(s.run)
		lo, hi := localRange(s, segs, from, to)
		parent := s.run.parent
		nr := s.run.replace(render(deleteRange(segs, lo, hi)))
		if nr.first == nil && parent != t.root && parent.FirstChild == nil {
			parent.AppendChild(newElement(atom.Br))
		}
	}
	t.pending = 0
	if n, off, found := t.pointAt(from, false); found {
		t.setCaret(n, off)
		return
	}
	if n, off, found := t.pointAt(from, true); found {
		t.setCaret(n, off)
		return
	}
	t.setCaret(t.root, 0)
}

// InsertParagraph splits the block at the caret into two blocks of the
// same tag and moves the caret to the start of the second. Headings take
// the SplitHeadingOnEnter path.
func (t *Tree) InsertParagraph() bool {
	if t.sel.IsZero() {
		return false
	}
	if !t.sel.Collapsed() {
		t.deleteSelection()
	}
	block := t.Locate(t.sel)
	if block == nil {
		return false
	}
	if block == t.root {
		block = t.wrapRun(atom.P)
	}
	if HeadingLevel(block) > 0 {
		return t.SplitHeadingOnEnter(block)
	}

	var right []segment
	if r, ok := t.runAtCaret(); ok && r.parent == block {
		at, _ := t.offsetOf(t.sel.Anchor, t.sel.AnchorOffset)
		segs := flatten(r)
		var left []segment
		left, right = splitAt(segs, at-t.runStart(r))
		r.replace(render(left))
	}
	if block.FirstChild == nil || !hasContent(block) {
		removeChildren(block)
		block.AppendChild(newElement(atom.Br))
	}

	next := newElement(block.DataAtom)
	for _, n := range render(right) {
		next.AppendChild(n)
	}
	if textLen(right) == 0 {
		removeChildren(next)
		next.AppendChild(newElement(atom.Br))
	}
	block.Parent.InsertBefore(next, block.NextSibling)
	t.pending = 0
	if first := next.FirstChild; first != nil && first.DataAtom != atom.Br {
		for first.Type != html.TextNode && first.FirstChild != nil {
			first = first.FirstChild
		}
		if first.Type == html.TextNode {
			t.setCaret(first, 0)
			return true
		}
	}
	t.setCaret(next, 0)
	return true
}

// hasContent reports whether n holds text or any element other than <br>.
func hasContent(n *html.Node) bool {
	if TextContent(n) != "" {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom != atom.Br {
			return true
		}
	}
	return false
}
