package journal

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/alimasry/go-journal-editor/richtext"
)

// Imported is a Markdown file converted to document content.
type Imported struct {
	// Title is the text of the first heading, or empty.
	Title string
	Body  string
}

// ImportMarkdown converts Markdown to body markup in the form the editor
// itself writes.
func ImportMarkdown(src []byte) (Imported, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return Imported{}, errors.Wrap(err, "convert markdown")
	}
	tree, err := richtext.Parse(buf.String())
	if err != nil {
		return Imported{}, errors.Wrap(err, "parse converted markdown")
	}
	tree.Compact()
	tree.Normalize()
	return Imported{Title: firstHeading(src), Body: tree.Serialize()}, nil
}

func firstHeading(src []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := h.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		title = strings.TrimSpace(b.String())
		return ast.WalkStop, nil
	})
	return title
}
