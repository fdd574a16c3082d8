package editor

import (
	"github.com/charmbracelet/bubbles/key"
	"golang.org/x/net/html/atom"

	"github.com/alimasry/go-journal-editor/richtext"
)

// Action names the shortcut a key event matched.
type Action int

const (
	ActionNone Action = iota
	ActionSplitHeading
	ActionAutocorrect
	ActionBold
	ActionItalic
	ActionHeading1
	ActionHeading2
	ActionHeading3
	ActionParagraph
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionSplitHeading:
		return "split-heading"
	case ActionAutocorrect:
		return "autocorrect"
	case ActionBold:
		return "bold"
	case ActionItalic:
		return "italic"
	case ActionHeading1:
		return "heading-1"
	case ActionHeading2:
		return "heading-2"
	case ActionHeading3:
		return "heading-3"
	case ActionParagraph:
		return "paragraph"
	}
	return "unknown"
}

// Outcome is the result of dispatching one key event.
//
// Handled means the host must suppress its default key behavior. Applied
// means the tree changed and the content-changed hook must fire.
type Outcome struct {
	Action  Action
	Handled bool
	Applied bool
}

// Dispatcher maps key events to tree commands. It holds no state between
// events.
type Dispatcher struct {
	surface Surface
	keys    KeyMap
}

func NewDispatcher(s Surface, keys KeyMap) *Dispatcher {
	return &Dispatcher{surface: s, keys: keys}
}

// Dispatch runs the first shortcut matching ev, in this order: newline in a
// heading, space after a '#' marker, bold, italic, heading 1-3, paragraph.
// A zero Outcome means the event belongs to the host.
func (d *Dispatcher) Dispatch(ev KeyEvent) Outcome {
	s := d.surface

	if ev.IsEnter() {
		if block := s.Locate(s.Selection()); block != nil && richtext.HeadingLevel(block) > 0 {
			return d.run(ActionSplitHeading, richtext.SplitHeading{Heading: block})
		}
	}

	if ev.IsPlainSpace() && Autocorrect(s) {
		return Outcome{Action: ActionAutocorrect, Handled: true, Applied: true}
	}

	if !ev.Primary() {
		return Outcome{}
	}
	plain, shifted := ev.loose(false), ev.loose(true)
	switch {
	case key.Matches(plain, d.keys.Bold):
		return d.run(ActionBold, richtext.ToggleInline{Style: richtext.Bold})
	case key.Matches(plain, d.keys.Italic):
		return d.run(ActionItalic, richtext.ToggleInline{Style: richtext.Italic})
	case key.Matches(shifted, d.keys.Heading1):
		return d.run(ActionHeading1, richtext.SetBlockTag{Tag: atom.H1})
	case key.Matches(shifted, d.keys.Heading2):
		return d.run(ActionHeading2, richtext.SetBlockTag{Tag: atom.H2})
	case key.Matches(shifted, d.keys.Heading3):
		return d.run(ActionHeading3, richtext.SetBlockTag{Tag: atom.H3})
	case key.Matches(plain, d.keys.Paragraph):
		return d.run(ActionParagraph, richtext.SetBlockTag{Tag: atom.P})
	}
	return Outcome{}
}

func (d *Dispatcher) run(a Action, cmd richtext.Command) Outcome {
	return Outcome{Action: a, Handled: true, Applied: d.surface.Exec(cmd)}
}
