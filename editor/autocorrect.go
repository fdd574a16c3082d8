package editor

import (
	"regexp"
	"strings"

	"github.com/alimasry/go-journal-editor/richtext"
)

// MaxHeadingLevel is the deepest heading the editor produces.
const MaxHeadingLevel = 3

var headingMarker = regexp.MustCompile(`^(#+)\s*$`)

// HeadingMarkerLevel returns the heading level a block's text asks for when
// it consists only of '#' characters and trailing whitespace. Non-breaking
// spaces count as spaces. Levels above MaxHeadingLevel are capped.
func HeadingMarkerLevel(text string) (int, bool) {
	m := headingMarker.FindStringSubmatch(strings.ReplaceAll(text, richtext.Placeholder, " "))
	if m == nil {
		return 0, false
	}
	return min(len(m[1]), MaxHeadingLevel), true
}

// Autocorrect turns the block at the caret into a heading when its text is
// a run of '#' characters. The marker is dropped and the heading receives
// the placeholder. It reports whether a transform happened; the space that
// triggered it must then not be inserted.
func Autocorrect(s Surface) bool {
	block := s.Locate(s.Selection())
	if block == nil {
		return false
	}
	level, ok := HeadingMarkerLevel(richtext.TextContent(block))
	if !ok {
		return false
	}
	return s.Exec(richtext.PromoteToHeading{Block: block, Level: level, DropText: true})
}
