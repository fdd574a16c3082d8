package journal

import (
	"regexp"
	"strings"
)

const (
	// DefaultExportName is used when a title sanitizes to nothing.
	DefaultExportName = "journal"
	ExportContentType = "text/plain; charset=utf-8"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-]+`)

// Export is a downloadable plain-text rendition of a document.
type Export struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// ExportFilename turns a title into a file name: runs of characters other
// than letters, digits, '_' and '-' become a single '_'.
func ExportFilename(title string) string {
	name := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(title), "_")
	if name == "" {
		name = DefaultExportName
	}
	return name + ".txt"
}

func NewExport(title, plainText string) Export {
	return Export{
		Filename:    ExportFilename(title),
		ContentType: ExportContentType,
		Content:     plainText,
	}
}
