// Package identity provides email and password sign-in for the journal.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid email or password format")
	ErrUserNotFound       = errors.New("user not found")
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

// Session identifies the signed-in user.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Provider is the identity surface the editing session consumes.
type Provider interface {
	CurrentSession() (Session, bool)
	// OnSessionChange registers fn and returns a function removing it.
	// fn receives ok=false after sign-out.
	OnSessionChange(fn func(s Session, ok bool)) (remove func())
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
}

// User is a stored account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists accounts.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (User, error)
	// CreateUser returns ErrEmailTaken when the email is already used.
	CreateUser(ctx context.Context, u User) error
}

// PasswordProvider is a Provider for one client connection. Accounts live
// in a shared UserStore; the current session is per provider.
type PasswordProvider struct {
	users UserStore
	cost  int

	mu        sync.Mutex
	session   Session
	signedIn  bool
	listeners map[int]func(Session, bool)
	nextID    int
}

func NewPasswordProvider(users UserStore) *PasswordProvider {
	return &PasswordProvider{
		users:     users,
		cost:      bcrypt.DefaultCost,
		listeners: make(map[int]func(Session, bool)),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validate(email, password string) error {
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return errors.Wrap(ErrInvalidInput, "email must look like name@host")
	}
	if len(password) < MinPasswordLength {
		return errors.Wrapf(ErrInvalidInput, "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func (p *PasswordProvider) CurrentSession() (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.signedIn
}

func (p *PasswordProvider) OnSessionChange(fn func(Session, bool)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *PasswordProvider) SignUp(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if err := validate(email, password); err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Session{}, errors.Wrap(err, "hash password")
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.users.CreateUser(ctx, u); err != nil {
		return Session{}, err
	}
	s := Session{UserID: u.ID, Email: u.Email}
	p.set(s, true)
	return s, nil
}

func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	u, err := p.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "look up user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	s := Session{UserID: u.ID, Email: u.Email}
	p.set(s, true)
	return s, nil
}

func (p *PasswordProvider) SignOut(context.Context) error {
	p.set(Session{}, false)
	return nil
}

// set stores the session and notifies listeners outside the lock.
func (p *PasswordProvider) set(s Session, ok bool) {
	p.mu.Lock()
	p.session, p.signedIn = s, ok
	fns := make([]func(Session, bool), 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if fn, found := p.listeners[i]; found {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(s, ok)
	}
}

// MemoryUsers is an in-memory UserStore.
type MemoryUsers struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byEmail: make(map[string]User)}
}

func (m *MemoryUsers) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUsers) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	return nil
}
