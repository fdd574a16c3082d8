package server

import (
	"encoding/json"
	"time"

	"github.com/alimasry/go-journal-editor/editor"
	"github.com/alimasry/go-journal-editor/identity"
	"github.com/alimasry/go-journal-editor/journal"
	"github.com/alimasry/go-journal-editor/richtext"
	"github.com/alimasry/go-journal-editor/store"
)

// Message types exchanged over WebSocket.
const (
	MsgSignIn    = "signin"
	MsgSignUp    = "signup"
	MsgSignOut   = "signout"
	MsgKey       = "key"
	MsgInput     = "input"
	MsgSelection = "selection"
	MsgSelect    = "select"
	MsgCreate    = "create"
	MsgRename    = "rename"
	MsgDelete    = "delete"
	MsgExport    = "export"
	MsgImport    = "import"

	MsgSession = "session"
	MsgDocs    = "docs"
	MsgBody    = "body"
	MsgError   = "error"
)

// ClientMessage is a message from client to server.
type ClientMessage struct {
	Type      string                  `json:"type"`
	Email     string                  `json:"email,omitempty"`
	Password  string                  `json:"password,omitempty"`
	Key       *editor.KeyEvent        `json:"key,omitempty"`
	Text      string                  `json:"text,omitempty"`
	// Selection uses DOM offsets: UTF-16 code units in text nodes.
	Selection *richtext.WireSelection `json:"selection,omitempty"`
	DocID     string                  `json:"docId,omitempty"`
	Title     string                  `json:"title,omitempty"`
	Markdown  string                  `json:"markdown,omitempty"`
}

// ServerMessage is a message from server to client.
type ServerMessage struct {
	Type      string                  `json:"type"`
	Session   *identity.Session       `json:"session,omitempty"`
	Help      string                  `json:"help,omitempty"`
	Docs      []DocInfo               `json:"docs,omitempty"`
	ActiveID  string                  `json:"activeId,omitempty"`
	Body      *string                 `json:"body,omitempty"`
	Selection *richtext.WireSelection `json:"selection,omitempty"`
	Action    string                  `json:"action,omitempty"`
	Export    *journal.Export         `json:"export,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// DocInfo describes one document in the sidebar list.
type DocInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func docInfos(docs []store.Document) []DocInfo {
	infos := make([]DocInfo, len(docs))
	for i, d := range docs {
		infos[i] = DocInfo{ID: d.ID, Title: d.Title, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
	}
	return infos
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
