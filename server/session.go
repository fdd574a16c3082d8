package server

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/editor"
	"github.com/alimasry/go-journal-editor/identity"
	"github.com/alimasry/go-journal-editor/journal"
	"github.com/alimasry/go-journal-editor/richtext"
	"github.com/alimasry/go-journal-editor/store"
)

// Session is the editing session behind one connection. Every message is
// handled on the Run goroutine, so the tree, editor and journal need no
// locking.
type Session struct {
	cfg    Config
	client *Client
	logger *zap.Logger

	identity identity.Provider
	journal  *journal.Session
	tree     *richtext.Tree
	editor   *editor.Editor
	bridge   *journal.Bridge

	incoming chan ClientMessage
}

func newSession(cfg Config, c *Client) *Session {
	s := &Session{
		cfg:      cfg,
		client:   c,
		logger:   c.logger.Named("session"),
		identity: identity.NewPasswordProvider(cfg.Users),
		incoming: make(chan ClientMessage, 64),
	}
	s.identity.OnSessionChange(s.identityChanged)
	return s
}

// Run handles messages until the connection's reader stops, then closes
// the client's send channel.
func (s *Session) Run() {
	defer func() {
		select {
		case s.client.hub.unregister <- s.client:
		case <-s.client.hub.stop:
		}
		close(s.client.send)
	}()

	s.sendSession()
	for msg := range s.incoming {
		s.handle(msg)
	}
}

func (s *Session) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
}

func (s *Session) handle(msg ClientMessage) {
	switch msg.Type {
	case MsgSignIn:
		s.authenticate(s.identity.SignIn, msg)
		return
	case MsgSignUp:
		s.authenticate(s.identity.SignUp, msg)
		return
	case MsgSignOut:
		ctx, cancel := s.ctx()
		defer cancel()
		if err := s.identity.SignOut(ctx); err != nil {
			s.fail("sign out failed", err)
		}
		return
	}

	if s.journal == nil {
		switch msg.Type {
		case MsgKey, MsgInput, MsgSelection, MsgSelect, MsgCreate, MsgRename, MsgDelete, MsgExport, MsgImport:
			s.client.sendError("not signed in")
		default:
			s.client.sendError("unknown message type: " + msg.Type)
		}
		return
	}

	switch msg.Type {
	case MsgKey:
		s.handleKey(msg)
	case MsgInput:
		if s.editor.Input(msg.Text) {
			s.sendBody("")
		}
	case MsgSelection:
		s.handleSelection(msg)
	case MsgSelect:
		ctx, cancel := s.ctx()
		defer cancel()
		if err := s.journal.Select(ctx, msg.DocID); err != nil {
			s.fail("cannot open document", err)
			return
		}
		s.sendDocs()
		s.sendBody("")
	case MsgCreate:
		ctx, cancel := s.ctx()
		defer cancel()
		if _, err := s.journal.Create(ctx); err != nil {
			s.fail("failed to create document", err)
			return
		}
		s.sendDocs()
		s.sendBody("")
	case MsgRename:
		if err := s.journal.Rename(msg.DocID, msg.Title); err != nil {
			s.fail("cannot rename document", err)
			return
		}
		s.sendDocs()
	case MsgDelete:
		ctx, cancel := s.ctx()
		defer cancel()
		if err := s.journal.Delete(ctx, msg.DocID); err != nil {
			s.fail("cannot delete document", err)
			return
		}
		s.sendDocs()
		s.sendBody("")
	case MsgExport:
		exp := s.bridge.Export()
		s.client.sendMsg(ServerMessage{Type: MsgExport, Export: &exp})
	case MsgImport:
		s.handleImport(msg)
	default:
		s.client.sendError("unknown message type: " + msg.Type)
	}
}

func (s *Session) authenticate(fn func(context.Context, string, string) (identity.Session, error), msg ClientMessage) {
	ctx, cancel := s.ctx()
	defer cancel()
	if _, err := fn(ctx, msg.Email, msg.Password); err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			s.client.sendError("invalid email or password")
		case errors.Is(err, identity.ErrEmailTaken):
			s.client.sendError("email already registered")
		case errors.Is(err, identity.ErrInvalidInput):
			s.client.sendError(err.Error())
		default:
			s.fail("authentication failed", err)
		}
	}
}

// identityChanged runs synchronously inside SignIn, SignUp and SignOut, on
// the Run goroutine.
func (s *Session) identityChanged(id identity.Session, ok bool) {
	s.closeJournal()
	if !ok {
		s.sendSession()
		return
	}

	ctx, cancel := s.ctx()
	defer cancel()
	js, err := journal.Open(ctx, journal.Config{
		OwnerID:    id.UserID,
		Store:      s.cfg.Store,
		LastActive: s.cfg.LastActive,
		Writer:     s.cfg.Writer,
		Logger:     s.logger,
	})
	if err != nil {
		s.fail("failed to load documents", err)
		s.sendSession()
		return
	}
	s.journal = js
	s.tree = richtext.New()
	s.bridge = journal.NewBridge(js, s.tree, s.logger)
	s.editor = editor.New(s.tree, s.cfg.Keys, func() { s.bridge.ContentChanged() })

	s.sendSession()
	s.sendDocs()
	s.sendBody("")
}

func (s *Session) closeJournal() {
	s.journal = nil
	s.tree = nil
	s.bridge = nil
	s.editor = nil
}

func (s *Session) handleKey(msg ClientMessage) {
	if msg.Key == nil {
		s.client.sendError("key message without key")
		return
	}
	out := s.editor.HandleKey(*msg.Key)
	if !out.Applied {
		return
	}
	action := ""
	if out.Action != editor.ActionNone {
		action = out.Action.String()
	}
	s.sendBody(action)
}

func (s *Session) handleSelection(msg ClientMessage) {
	if msg.Selection == nil {
		s.editor.Select(richtext.Selection{})
		return
	}
	sel, err := s.tree.DecodeSelection(*msg.Selection)
	if err != nil {
		s.client.sendError("invalid selection: " + err.Error())
		return
	}
	s.editor.Select(sel)
}

func (s *Session) handleImport(msg ClientMessage) {
	imp, err := journal.ImportMarkdown([]byte(msg.Markdown))
	if err != nil {
		s.fail("failed to import markdown", err)
		return
	}
	title := msg.Title
	if title == "" {
		title = imp.Title
	}
	if title == "" {
		title = store.Untitled
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if _, err := s.journal.CreateWithBody(ctx, title, imp.Body); err != nil {
		s.fail("failed to create document", err)
		return
	}
	s.sendDocs()
	s.sendBody("")
}

func (s *Session) fail(message string, err error) {
	s.logger.Warn(message, zap.Error(err))
	switch {
	case errors.Is(err, journal.ErrLastDocument):
		s.client.sendError("cannot delete the only document")
	case errors.Is(err, journal.ErrUnknownDocument):
		s.client.sendError("unknown document")
	default:
		s.client.sendError(message)
	}
}

func (s *Session) sendSession() {
	msg := ServerMessage{Type: MsgSession, Help: s.cfg.Keys.Help()}
	if id, ok := s.identity.CurrentSession(); ok && s.journal != nil {
		msg.Session = &id
	}
	s.client.sendMsg(msg)
}

func (s *Session) sendDocs() {
	s.client.sendMsg(ServerMessage{
		Type:     MsgDocs,
		Docs:     docInfos(s.journal.Docs()),
		ActiveID: s.journal.ActiveID(),
	})
}

// sendBody sends the tree content and caret. action names the edit that
// produced it, if any.
func (s *Session) sendBody(action string) {
	body := s.tree.Serialize()
	msg := ServerMessage{Type: MsgBody, ActiveID: s.journal.ActiveID(), Body: &body, Action: action}
	if sel := s.tree.Selection(); !sel.IsZero() {
		if w, err := s.tree.EncodeSelection(sel); err == nil {
			msg.Selection = &w
		}
	}
	s.client.sendMsg(msg)
}
