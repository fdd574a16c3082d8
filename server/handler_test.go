package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alimasry/go-journal-editor/editor"
	"github.com/alimasry/go-journal-editor/store"
)

func setupTestServer(t *testing.T, staticDir string) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(testConfig())
	go hub.Run()
	server := httptest.NewServer(NewHandler(hub, staticDir))
	t.Cleanup(func() {
		server.Close()
		hub.Close()
	})
	return server, hub
}

func wsConnect(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWsMsg(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestHandler_WebSocketSignUpAndType(t *testing.T) {
	server, _ := setupTestServer(t, "")
	conn := wsConnect(t, server)

	hello := readWsMsg(t, conn)
	if hello.Type != MsgSession || hello.Session != nil {
		t.Fatalf("expected signed-out session message, got %+v", hello)
	}
	if hello.Help == "" {
		t.Error("expected shortcut help")
	}

	if err := conn.WriteJSON(ClientMessage{Type: MsgSignUp, Email: "ann@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{MsgSession, MsgDocs, MsgBody} {
		if got := readWsMsg(t, conn); got.Type != want {
			t.Fatalf("expected %s, got %q", want, got.Type)
		}
	}

	for _, r := range "hi" {
		conn.WriteJSON(ClientMessage{Type: MsgKey, Key: &editor.KeyEvent{Key: string(r)}})
		readWsMsg(t, conn)
	}
	conn.WriteJSON(ClientMessage{Type: MsgKey, Key: &editor.KeyEvent{Key: "b", Ctrl: true}})
	if msg := readWsMsg(t, conn); msg.Action != "bold" || msg.Body == nil || *msg.Body != "<p>hi</p>" {
		t.Fatalf("ctrl+b: got %+v", msg)
	}
	conn.WriteJSON(ClientMessage{Type: MsgInput, Text: "!"})
	msg := readWsMsg(t, conn)
	if msg.Type != MsgBody || msg.Body == nil || *msg.Body != "<p>hi<b>!</b></p>" {
		t.Fatalf("body = %+v, want <p>hi<b>!</b></p>", msg)
	}
}

func TestHandler_CloseWaitsForSessions(t *testing.T) {
	cfg := testConfig()
	hub := NewHub(cfg)
	go hub.Run()
	server := httptest.NewServer(NewHandler(hub, ""))
	defer server.Close()

	conn := wsConnect(t, server)
	readWsMsg(t, conn)
	conn.WriteJSON(ClientMessage{Type: MsgSignUp, Email: "ann@example.com", Password: "secret1"})
	readWsMsg(t, conn)
	docs := readWsMsg(t, conn)
	readWsMsg(t, conn)
	for _, r := range "hi" {
		conn.WriteJSON(ClientMessage{Type: MsgKey, Key: &editor.KeyEvent{Key: string(r)}})
		readWsMsg(t, conn)
	}

	hub.Close()
	cfg.Writer.Wait()

	got, err := cfg.Store.(*store.MemoryStore).Get(ctx(), docs.ActiveID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "<p>hi</p>" {
		t.Errorf("stored body = %q, want <p>hi</p>", got.Body)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}

	late := wsConnect(t, server)
	late.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := late.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("late connection: got %v, want going-away close", err)
	}
	hub.Close()
}

func TestHandler_InvalidMessage(t *testing.T) {
	server, _ := setupTestServer(t, "")
	conn := wsConnect(t, server)
	readWsMsg(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if msg := readWsMsg(t, conn); msg.Type != MsgError || msg.Message != "invalid message format" {
		t.Fatalf("got %+v", msg)
	}
}

func TestHandler_Healthz(t *testing.T) {
	server, hub := setupTestServer(t, "")
	conn := wsConnect(t, server)
	readWsMsg(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Clients != 1 {
		t.Errorf("healthz = %+v, want ok with 1 client", body)
	}
}

func TestHandler_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<title>journal</title>"), 0o644); err != nil {
		t.Fatal(err)
	}
	server, _ := setupTestServer(t, dir)

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
