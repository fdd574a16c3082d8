package richtext

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Style is a set of inline styles applied to a text run.
type Style uint8

const (
	Bold Style = 1 << iota
	Italic
)

func (s Style) String() string {
	switch s {
	case 0:
		return "plain"
	case Bold:
		return "bold"
	case Italic:
		return "italic"
	case Bold | Italic:
		return "bold+italic"
	}
	return "unknown"
}

func styleOf(n *html.Node) Style {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.B, atom.Strong:
		return Bold
	case atom.I, atom.Em:
		return Italic
	}
	return 0
}

func styleTag(s Style) atom.Atom {
	if s == Italic {
		return atom.I
	}
	return atom.B
}

// segment is a flattened piece of an inline run. A line break or an empty
// element such as <img> is a zero-width segment.
type segment struct {
	text string
	br   bool
	void *html.Node
	// layers are the inline elements enclosing the segment, outermost
	// first. They are templates: render clones them.
	layers []*html.Node
}

func (s segment) zeroWidth() bool { return s.br || s.void != nil }

func (s segment) style() Style {
	var st Style
	for _, l := range s.layers {
		st |= styleOf(l)
	}
	return st
}

func (s segment) withText(text string) segment {
	s.text = text
	return s
}

// restyled sets or clears style. Setting adds tmpl as a new layer unless
// the style is already present, so existing <strong> or <em> spelling is
// kept. Bold goes outside trailing italic layers. Clearing drops every
// layer carrying the style.
func (s segment) restyled(style Style, on bool, tmpl *html.Node) segment {
	if on {
		if s.style()&style != 0 {
			return s
		}
		idx := len(s.layers)
		if style == Bold {
			for idx > 0 && styleOf(s.layers[idx-1]) == Italic {
				idx--
			}
		}
		layers := make([]*html.Node, 0, len(s.layers)+1)
		layers = append(layers, s.layers[:idx]...)
		layers = append(layers, tmpl)
		s.layers = append(layers, s.layers[idx:]...)
		return s
	}
	layers := make([]*html.Node, 0, len(s.layers))
	for _, l := range s.layers {
		if styleOf(l) != style {
			layers = append(layers, l)
		}
	}
	s.layers = layers
	return s
}

// toggled flips every style in pending.
func (s segment) toggled(pending Style) segment {
	for _, st := range []Style{Bold, Italic} {
		if pending&st != 0 {
			s = s.restyled(st, s.style()&st == 0, newElement(styleTag(st)))
		}
	}
	return s
}

// run is a maximal sequence of inline siblings under a structural parent.
type run struct {
	parent      *html.Node
	first, last *html.Node
}

func (r run) nodes() []*html.Node {
	var out []*html.Node
	for n := r.first; n != nil; n = n.NextSibling {
		out = append(out, n)
		if n == r.last {
			break
		}
	}
	return out
}

// runOf returns the inline run containing n. n must not be structural.
func runOf(n *html.Node) run {
	top := n
	for top.Parent != nil && !isStructural(top.Parent) {
		top = top.Parent
	}
	first, last := top, top
	for first.PrevSibling != nil && !isStructural(first.PrevSibling) {
		first = first.PrevSibling
	}
	for last.NextSibling != nil && !isStructural(last.NextSibling) {
		last = last.NextSibling
	}
	return run{parent: top.Parent, first: first, last: last}
}

// replace swaps the run's nodes for nodes and returns the new run. The
// returned run has nil bounds when nodes is empty.
func (r run) replace(nodes []*html.Node) run {
	old := r.nodes()
	next := r.last.NextSibling
	for _, n := range old {
		r.parent.RemoveChild(n)
	}
	for _, n := range nodes {
		r.parent.InsertBefore(n, next)
	}
	if len(nodes) == 0 {
		return run{parent: r.parent}
	}
	return run{parent: r.parent, first: nodes[0], last: nodes[len(nodes)-1]}
}

func flatten(r run) []segment {
	var segs []segment
	var walk func(n *html.Node, layers []*html.Node)
	walk = func(n *html.Node, layers []*html.Node) {
		switch n.Type {
		case html.TextNode:
			if n.Data != "" {
				segs = append(segs, segment{text: n.Data, layers: layers})
			}
		case html.CommentNode:
			segs = append(segs, segment{void: n, layers: layers})
		case html.ElementNode:
			switch {
			case n.DataAtom == atom.Br:
				segs = append(segs, segment{br: true, layers: layers})
				return
			case n.FirstChild == nil:
				if styleOf(n) == 0 {
					segs = append(segs, segment{void: n, layers: layers})
				}
				return
			}
			inner := append(layers[:len(layers):len(layers)], n)
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, inner)
			}
		}
	}
	for _, n := range r.nodes() {
		walk(n, nil)
	}
	return segs
}

func textLen(segs []segment) int {
	n := 0
	for _, s := range segs {
		n += len(s.text)
	}
	return n
}

// splitAt cuts segs at text offset at. Line breaks sitting exactly on the
// cut stay on the left.
func splitAt(segs []segment, at int) (left, right []segment) {
	pos := 0
	for i, s := range segs {
		if s.zeroWidth() {
			if pos <= at {
				left = append(left, s)
				continue
			}
			return left, append(right, segs[i:]...)
		}
		end := pos + len(s.text)
		switch {
		case end <= at:
			left = append(left, s)
		case pos >= at:
			return left, append(right, segs[i:]...)
		default:
			cut := at - pos
			left = append(left, s.withText(s.text[:cut]))
			right = append(right, s.withText(s.text[cut:]))
			return left, append(right, segs[i+1:]...)
		}
		pos = end
	}
	return left, right
}

// restyle sets or clears style on the text range [from, to). Segments
// styled by this call share one element: the neighbor's element for the
// style when there is one, so <strong> text grows instead of gaining a
// <b> sibling, and a new <b> or <i> otherwise.
func restyle(segs []segment, from, to int, style Style, on bool) []segment {
	left, rest := splitAt(segs, from)
	mid, right := splitAt(rest, to-from)
	tmpl := neighborLayer(left, right, style)
	if tmpl == nil {
		tmpl = newElement(styleTag(style))
	}
	out := make([]segment, 0, len(segs)+2)
	out = append(out, left...)
	for _, s := range mid {
		if !s.zeroWidth() {
			s = s.restyled(style, on, tmpl)
		}
		out = append(out, s)
	}
	return append(out, right...)
}

// neighborLayer returns the element carrying style around the nearest
// character before the range, or else after it.
func neighborLayer(left, right []segment, style Style) *html.Node {
	find := func(s segment) *html.Node {
		for _, l := range s.layers {
			if styleOf(l) == style {
				return l
			}
		}
		return nil
	}
	for i := len(left) - 1; i >= 0; i-- {
		if !left[i].zeroWidth() {
			if l := find(left[i]); l != nil {
				return l
			}
			break
		}
	}
	for _, s := range right {
		if !s.zeroWidth() {
			return find(s)
		}
	}
	return nil
}

// styled reports whether every character in [from, to) carries style.
func styled(segs []segment, from, to int, style Style) bool {
	pos := 0
	for _, s := range segs {
		end := pos + len(s.text)
		if !s.zeroWidth() && end > from && pos < to && s.style()&style != style {
			return false
		}
		pos = end
	}
	return true
}

// layersAt returns the layers a character typed at offset at inherits:
// those of the preceding character, or of the following one at offset 0.
func layersAt(segs []segment, at int) []*html.Node {
	pos := 0
	var next *segment
	for i := range segs {
		s := &segs[i]
		if s.zeroWidth() {
			continue
		}
		end := pos + len(s.text)
		if at > pos && at <= end {
			return s.layers
		}
		if next == nil && at <= pos {
			next = s
		}
		pos = end
	}
	if next != nil {
		return next.layers
	}
	return nil
}

// insertSegment puts seg at text offset at.
func insertSegment(segs []segment, at int, seg segment) []segment {
	if onlyLineBreaks(segs) {
		// A run holding only line breaks is an empty-block placeholder.
		return []segment{seg}
	}
	left, right := splitAt(segs, at)
	out := make([]segment, 0, len(segs)+1)
	out = append(out, left...)
	out = append(out, seg)
	return append(out, right...)
}

func onlyLineBreaks(segs []segment) bool {
	for _, s := range segs {
		if !s.br {
			return false
		}
	}
	return true
}

func deleteRange(segs []segment, from, to int) []segment {
	left, rest := splitAt(segs, from)
	_, right := splitAt(rest, to-from)
	return append(left, right...)
}

// render turns segments back into markup. Consecutive segments sharing
// leading layers share the elements cloned from them; afterwards adjacent
// text nodes and adjacent equal style elements are merged.
func render(segs []segment) []*html.Node {
	type opened struct {
		tmpl, el *html.Node
	}
	box := newElement(atom.Span)
	var open []opened
	for _, s := range segs {
		if !s.zeroWidth() && s.text == "" {
			continue
		}
		k := 0
		for k < len(open) && k < len(s.layers) && open[k].tmpl == s.layers[k] {
			k++
		}
		open = open[:k]
		parent := box
		if k > 0 {
			parent = open[k-1].el
		}
		for _, l := range s.layers[k:] {
			el := cloneShallow(l)
			parent.AppendChild(el)
			open = append(open, opened{tmpl: l, el: el})
			parent = el
		}
		switch {
		case s.br:
			parent.AppendChild(newElement(atom.Br))
		case s.void != nil:
			parent.AppendChild(cloneShallow(s.void))
		default:
			if last := parent.LastChild; last != nil && last.Type == html.TextNode {
				last.Data += s.text
			} else {
				parent.AppendChild(&html.Node{Type: html.TextNode, Data: s.text})
			}
		}
	}
	mergeInline(box)

	var nodes []*html.Node
	for c := box.FirstChild; c != nil; {
		next := c.NextSibling
		box.RemoveChild(c)
		nodes = append(nodes, c)
		c = next
	}
	return nodes
}

// mergeInline joins adjacent text nodes and adjacent style elements with
// the same tag and attributes below n.
func mergeInline(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if next == nil {
			break
		}
		switch {
		case c.Type == html.TextNode && next.Type == html.TextNode:
			c.Data += next.Data
			n.RemoveChild(next)
			continue
		case sameStyleElement(c, next):
			for gc := next.FirstChild; gc != nil; {
				after := gc.NextSibling
				next.RemoveChild(gc)
				c.AppendChild(gc)
				gc = after
			}
			n.RemoveChild(next)
			continue
		}
		c = next
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			mergeInline(c)
		}
	}
}

func sameStyleElement(a, b *html.Node) bool {
	if styleOf(a) == 0 || b.Type != html.ElementNode || a.DataAtom != b.DataAtom || a.Data != b.Data {
		return false
	}
	if len(a.Attr) != len(b.Attr) {
		return false
	}
	for i := range a.Attr {
		if a.Attr[i] != b.Attr[i] {
			return false
		}
	}
	return true
}

func cloneShallow(n *html.Node) *html.Node {
	return &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
}
