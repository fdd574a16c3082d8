// Package editor turns host key events into structural edits of the
// editable tree: formatting shortcuts, the '#' heading shortcut and the
// host's default typing behavior.
package editor

import (
	"golang.org/x/net/html"

	"github.com/alimasry/go-journal-editor/richtext"
)

// Surface is the capability set the editor needs from the editable tree.
// *richtext.Tree implements it.
type Surface interface {
	Selection() richtext.Selection
	SetSelection(sel richtext.Selection)
	Locate(sel richtext.Selection) *html.Node
	Exec(cmd richtext.Command) bool
	Serialize() string
	Hydrate(body string) error
}

var _ Surface = (*richtext.Tree)(nil)

// Editor binds a surface to the shortcut dispatcher and reports content
// changes to onChange, synchronously with the event that caused them.
type Editor struct {
	surface    Surface
	dispatcher *Dispatcher
	keys       KeyMap
	onChange   func()
}

func New(s Surface, keys KeyMap, onChange func()) *Editor {
	if onChange == nil {
		onChange = func() {}
	}
	return &Editor{
		surface:    s,
		dispatcher: NewDispatcher(s, keys),
		keys:       keys,
		onChange:   onChange,
	}
}

func (e *Editor) Surface() Surface { return e.surface }

func (e *Editor) Keys() KeyMap { return e.keys }

// HandleKey dispatches ev. Keys no shortcut claims get the host default:
// printable keys type text and Enter splits the block.
func (e *Editor) HandleKey(ev KeyEvent) Outcome {
	out := e.dispatcher.Dispatch(ev)
	if !out.Handled {
		switch text, ok := ev.Printable(); {
		case ok:
			out.Applied = e.surface.Exec(richtext.InsertText{Text: text})
		case ev.IsEnter():
			out.Applied = e.surface.Exec(richtext.InsertParagraph{})
		}
	}
	if out.Applied {
		e.onChange()
	}
	return out
}

// Input types text that arrived outside a key event, such as a paste.
func (e *Editor) Input(text string) bool {
	if !e.surface.Exec(richtext.InsertText{Text: text}) {
		return false
	}
	e.onChange()
	return true
}

// Select moves the selection without changing content.
func (e *Editor) Select(sel richtext.Selection) {
	e.surface.SetSelection(sel)
}
