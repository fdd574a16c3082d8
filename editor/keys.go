package editor

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyEvent is a key press reported by the host.
//
// Key is the key value the host reports ("b", "B", "1", "Enter", " ").
// Shortcut matching is case-insensitive.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Shift bool   `json:"shift,omitempty"`
}

// String renders the event as a binding string such as "ctrl+shift+1".
func (e KeyEvent) String() string {
	var b strings.Builder
	if e.Ctrl {
		b.WriteString("ctrl+")
	}
	if e.Meta {
		b.WriteString("meta+")
	}
	if e.Alt {
		b.WriteString("alt+")
	}
	if e.Shift {
		b.WriteString("shift+")
	}
	b.WriteString(e.name())
	return b.String()
}

func (e KeyEvent) name() string {
	if e.Key == " " {
		return "space"
	}
	return strings.ToLower(e.Key)
}

// Primary reports whether either platform command modifier is held.
func (e KeyEvent) Primary() bool { return e.Ctrl || e.Meta }

// IsEnter reports whether the event is the newline key, with any modifiers.
func (e KeyEvent) IsEnter() bool { return e.name() == "enter" }

// IsPlainSpace reports a space typed without ctrl, meta or alt.
func (e KeyEvent) IsPlainSpace() bool {
	return e.name() == "space" && !e.Ctrl && !e.Meta && !e.Alt
}

// Printable returns the text a plain key press types, if any.
func (e KeyEvent) Printable() (string, bool) {
	if e.Ctrl || e.Meta || e.Alt {
		return "", false
	}
	if e.name() == "space" {
		return " ", true
	}
	if len([]rune(e.Key)) != 1 {
		return "", false
	}
	return e.Key, true
}

// loose drops the modifiers a shortcut does not care about. Shift is kept
// only when keepShift is set.
func (e KeyEvent) loose(keepShift bool) KeyEvent {
	return KeyEvent{Key: e.Key, Ctrl: e.Ctrl, Meta: e.Meta, Shift: keepShift && e.Shift}
}

// KeyMap defines the formatting shortcuts. Both primary modifiers are bound.
type KeyMap struct {
	Bold, Italic                 key.Binding
	Heading1, Heading2, Heading3 key.Binding
	Paragraph                    key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Bold:      key.NewBinding(key.WithKeys("ctrl+b", "meta+b"), key.WithHelp("ctrl+b", "bold")),
		Italic:    key.NewBinding(key.WithKeys("ctrl+i", "meta+i"), key.WithHelp("ctrl+i", "italic")),
		Heading1:  key.NewBinding(key.WithKeys("ctrl+shift+1", "meta+shift+1"), key.WithHelp("ctrl+shift+1", "heading 1")),
		Heading2:  key.NewBinding(key.WithKeys("ctrl+shift+2", "meta+shift+2"), key.WithHelp("ctrl+shift+2", "heading 2")),
		Heading3:  key.NewBinding(key.WithKeys("ctrl+shift+3", "meta+shift+3"), key.WithHelp("ctrl+shift+3", "heading 3")),
		Paragraph: key.NewBinding(key.WithKeys("ctrl+0", "meta+0"), key.WithHelp("ctrl+0", "paragraph")),
	}
}

// Help renders the one-line shortcut hint shown under the editor.
func (km KeyMap) Help() string {
	var parts []string
	for _, b := range []key.Binding{km.Bold, km.Italic, km.Heading1, km.Heading2, km.Heading3, km.Paragraph} {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	parts = append(parts, `"#"+space heading`)
	return strings.Join(parts, " · ")
}
