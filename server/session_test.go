package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/editor"
	"github.com/alimasry/go-journal-editor/identity"
	"github.com/alimasry/go-journal-editor/journal"
	"github.com/alimasry/go-journal-editor/lastactive"
	"github.com/alimasry/go-journal-editor/richtext"
	"github.com/alimasry/go-journal-editor/store"
)

func ctx() context.Context { return context.Background() }

func testConfig() Config {
	st := store.NewMemoryStore()
	return Config{
		Store:        st,
		LastActive:   lastactive.NewMemoryStore(),
		Users:        identity.NewMemoryUsers(),
		Writer:       journal.NewWriter(st, time.Second, zap.NewNop()),
		Keys:         editor.DefaultKeyMap(),
		StoreTimeout: time.Second,
		Logger:       zap.NewNop(),
	}
}

// mockClient creates a client without a real WebSocket connection, for testing.
func mockClient(hub *Hub, id string) *Client {
	c := &Client{
		ID:     id,
		hub:    hub,
		send:   make(chan []byte, 256),
		logger: zap.NewNop(),
	}
	c.session = newSession(hub.cfg, c)
	return c
}

// recvMsg reads one message from a mock client's send channel with timeout.
func recvMsg(t *testing.T, c *Client) ServerMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return ServerMessage{}
	}
}

func expectType(t *testing.T, c *Client, typ string) ServerMessage {
	t.Helper()
	msg := recvMsg(t, c)
	if msg.Type != typ {
		t.Fatalf("expected %s message, got %q (%+v)", typ, msg.Type, msg)
	}
	return msg
}

func expectError(t *testing.T, c *Client, want string) {
	t.Helper()
	msg := expectType(t, c, MsgError)
	if msg.Message != want {
		t.Fatalf("error = %q, want %q", msg.Message, want)
	}
}

func expectBody(t *testing.T, c *Client, want string) ServerMessage {
	t.Helper()
	msg := expectType(t, c, MsgBody)
	if msg.Body == nil || *msg.Body != want {
		t.Fatalf("body = %v, want %q", msg.Body, want)
	}
	return msg
}

func noMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message: %s", data)
	default:
	}
}

// signUp signs a fresh account up and consumes the session, docs and body
// messages that follow.
func signUp(t *testing.T, c *Client, email string) ServerMessage {
	t.Helper()
	c.session.handle(ClientMessage{Type: MsgSignUp, Email: email, Password: "secret1"})
	sess := expectType(t, c, MsgSession)
	if sess.Session == nil || sess.Session.Email != email {
		t.Fatalf("session = %+v, want signed in as %s", sess.Session, email)
	}
	docs := expectType(t, c, MsgDocs)
	expectType(t, c, MsgBody)
	return docs
}

func typeKeys(c *Client, s string) {
	for _, r := range s {
		c.session.handle(ClientMessage{Type: MsgKey, Key: &editor.KeyEvent{Key: string(r)}})
	}
}

func TestSession_RequiresSignIn(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")

	c.session.handle(ClientMessage{Type: MsgKey, Key: &editor.KeyEvent{Key: "a"}})
	expectError(t, c, "not signed in")

	c.session.handle(ClientMessage{Type: "bogus"})
	expectError(t, c, "unknown message type: bogus")
}

func TestSession_SignUpOpensUntitledDocument(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")

	docs := signUp(t, c, "ann@example.com")
	if len(docs.Docs) != 1 || docs.Docs[0].Title != store.Untitled {
		t.Fatalf("docs = %+v, want one Untitled document", docs.Docs)
	}
	if docs.ActiveID != docs.Docs[0].ID {
		t.Errorf("activeId = %q, want %q", docs.ActiveID, docs.Docs[0].ID)
	}
}

func TestSession_AuthErrors(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")

	c.session.handle(ClientMessage{Type: MsgSignUp, Email: "ann@example.com", Password: "123"})
	msg := expectType(t, c, MsgError)
	if msg.Message == "" {
		t.Error("expected validation message")
	}

	signUp(t, c, "ann@example.com")
	c.session.handle(ClientMessage{Type: MsgSignOut})
	expectType(t, c, MsgSession)

	other := mockClient(hub, "c2")
	other.session.handle(ClientMessage{Type: MsgSignUp, Email: "ann@example.com", Password: "secret1"})
	expectError(t, other, "email already registered")

	other.session.handle(ClientMessage{Type: MsgSignIn, Email: "ann@example.com", Password: "wrong-password"})
	expectError(t, other, "invalid email or password")
}

func TestSession_HeadingShortcutPersists(t *testing.T) {
	cfg := testConfig()
	hub := NewHub(cfg)
	c := mockClient(hub, "c1")
	docs := signUp(t, c, "ann@example.com")
	id := docs.ActiveID

	typeKeys(c, "#")
	expectBody(t, c, "<p>#</p>")

	c.session.handle(ClientMessage{Type: MsgKey, Key: &editor.KeyEvent{Key: " "}})
	msg := expectBody(t, c, "<h1>&nbsp;</h1>")
	if msg.Action != "autocorrect" {
		t.Errorf("action = %q, want autocorrect", msg.Action)
	}
	if msg.Selection == nil {
		t.Error("expected caret in body message")
	}

	typeKeys(c, "T")
	expectBody(t, c, "<h1>T</h1>")

	cfg.Writer.Wait()
	stored, err := cfg.Store.List(ctx(), c.session.journal.OwnerID())
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != id || stored[0].Body != "<h1>T</h1>" {
		t.Fatalf("stored = %+v, want body <h1>T</h1>", stored)
	}
}

func TestSession_UnhandledShortcutSendsNothing(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")
	signUp(t, c, "ann@example.com")

	c.session.handle(ClientMessage{Type: MsgKey, Key: &editor.KeyEvent{Key: "k", Ctrl: true}})
	noMessage(t, c)

	c.session.handle(ClientMessage{Type: MsgKey})
	expectError(t, c, "key message without key")
}

func TestSession_DocumentLifecycle(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")
	first := signUp(t, c, "ann@example.com").ActiveID

	c.session.handle(ClientMessage{Type: MsgDelete, DocID: first})
	expectError(t, c, "cannot delete the only document")

	c.session.handle(ClientMessage{Type: MsgCreate})
	docs := expectType(t, c, MsgDocs)
	if len(docs.Docs) != 2 || docs.ActiveID == first {
		t.Fatalf("after create: %+v", docs)
	}
	second := docs.ActiveID
	expectBody(t, c, "")

	c.session.handle(ClientMessage{Type: MsgInput, Text: "second"})
	expectBody(t, c, "<p>second</p>")

	c.session.handle(ClientMessage{Type: MsgRename, DocID: second, Title: "Tuesday"})
	docs = expectType(t, c, MsgDocs)
	if docs.Docs[1].Title != "Tuesday" {
		t.Errorf("title = %q, want Tuesday", docs.Docs[1].Title)
	}

	c.session.handle(ClientMessage{Type: MsgSelect, DocID: first})
	expectType(t, c, MsgDocs)
	expectBody(t, c, "")

	c.session.handle(ClientMessage{Type: MsgSelect, DocID: second})
	expectType(t, c, MsgDocs)
	expectBody(t, c, "<p>second</p>")

	c.session.handle(ClientMessage{Type: MsgDelete, DocID: second})
	docs = expectType(t, c, MsgDocs)
	if len(docs.Docs) != 1 || docs.ActiveID != first {
		t.Fatalf("after delete: %+v", docs)
	}
	expectBody(t, c, "")

	c.session.handle(ClientMessage{Type: MsgSelect, DocID: second})
	expectError(t, c, "unknown document")
}

func TestSession_SelectionOffsetsAreUTF16(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")
	signUp(t, c, "ann@example.com")

	c.session.handle(ClientMessage{Type: MsgInput, Text: "😀é"})
	msg := expectBody(t, c, "<p>😀é</p>")
	if msg.Selection == nil || msg.Selection.Anchor.Offset != 3 {
		t.Fatalf("caret = %+v, want UTF-16 offset 3", msg.Selection)
	}

	at := richtext.Point{Path: []int{0, 0}, Offset: 2}
	c.session.handle(ClientMessage{Type: MsgSelection, Selection: &richtext.WireSelection{Anchor: at, Focus: at}})
	c.session.handle(ClientMessage{Type: MsgInput, Text: "x"})
	msg = expectBody(t, c, "<p>😀xé</p>")
	if msg.Selection.Anchor.Offset != 3 {
		t.Errorf("caret offset = %d, want 3", msg.Selection.Anchor.Offset)
	}
}

func TestSession_Export(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")
	id := signUp(t, c, "ann@example.com").ActiveID

	c.session.handle(ClientMessage{Type: MsgRename, DocID: id, Title: "Trip: Day 1"})
	expectType(t, c, MsgDocs)
	typeKeys(c, "# Trip")
	for i := 0; i < len("# Trip"); i++ {
		expectType(t, c, MsgBody)
	}

	c.session.handle(ClientMessage{Type: MsgExport})
	msg := expectType(t, c, MsgExport)
	want := journal.Export{Filename: "Trip_Day_1.txt", ContentType: journal.ExportContentType, Content: "Trip"}
	if msg.Export == nil || *msg.Export != want {
		t.Fatalf("export = %+v, want %+v", msg.Export, want)
	}
}

func TestSession_ImportMarkdown(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")
	signUp(t, c, "ann@example.com")

	c.session.handle(ClientMessage{Type: MsgImport, Markdown: "# Notes\n\nsome **bold** text\n"})
	docs := expectType(t, c, MsgDocs)
	if len(docs.Docs) != 2 || docs.Docs[1].Title != "Notes" || docs.ActiveID != docs.Docs[1].ID {
		t.Fatalf("docs = %+v", docs)
	}
	expectBody(t, c, "<h1>Notes</h1><p>some <b>bold</b> text</p>")
}

func TestSession_SignOutClosesJournal(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")
	signUp(t, c, "ann@example.com")

	c.session.handle(ClientMessage{Type: MsgSignOut})
	msg := expectType(t, c, MsgSession)
	if msg.Session != nil {
		t.Fatalf("session = %+v, want signed out", msg.Session)
	}

	c.session.handle(ClientMessage{Type: MsgCreate})
	expectError(t, c, "not signed in")
}

func TestSession_SignInRestoresLastDocument(t *testing.T) {
	hub := NewHub(testConfig())
	c := mockClient(hub, "c1")
	signUp(t, c, "ann@example.com")
	c.session.handle(ClientMessage{Type: MsgCreate})
	second := expectType(t, c, MsgDocs).ActiveID
	expectBody(t, c, "")
	c.session.handle(ClientMessage{Type: MsgInput, Text: "later"})
	expectBody(t, c, "<p>later</p>")
	hub.cfg.Writer.Wait()

	other := mockClient(hub, "c2")
	other.session.handle(ClientMessage{Type: MsgSignIn, Email: "ann@example.com", Password: "secret1"})
	expectType(t, other, MsgSession)
	docs := expectType(t, other, MsgDocs)
	if docs.ActiveID != second {
		t.Fatalf("activeId = %q, want %q", docs.ActiveID, second)
	}
	expectBody(t, other, "<p>later</p>")
}
