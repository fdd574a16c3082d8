package identity

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newProvider(users UserStore) *PasswordProvider {
	p := NewPasswordProvider(users)
	p.cost = bcrypt.MinCost
	return p
}

func TestSignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUsers()
	p := newProvider(users)

	s, err := p.SignUp(ctx, " Ada@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", s.Email)
	_, err = uuid.Parse(s.UserID)
	assert.NoError(t, err)

	cur, ok := p.CurrentSession()
	assert.True(t, ok)
	assert.Equal(t, s, cur)

	// A second connection signs in to the same account.
	other := newProvider(users)
	got, err := other.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	p := newProvider(NewMemoryUsers())

	for _, tc := range []struct{ email, password string }{
		{"no-at-sign", "secret1"},
		{"@host", "secret1"},
		{"ada@example.com", "short"},
	} {
		_, err := p.SignUp(ctx, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrInvalidInput, "%q/%q", tc.email, tc.password)
	}
	_, ok := p.CurrentSession()
	assert.False(t, ok)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	p := newProvider(NewMemoryUsers())

	_, err := p.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "ADA@example.com", "another1")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUsers()
	_, err := newProvider(users).SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	p := newProvider(users)
	_, err = p.SignIn(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, ok := p.CurrentSession()
	assert.False(t, ok)
}

func TestOnSessionChange(t *testing.T) {
	ctx := context.Background()
	p := newProvider(NewMemoryUsers())

	type event struct {
		s  Session
		ok bool
	}
	var events []event
	remove := p.OnSessionChange(func(s Session, ok bool) {
		events = append(events, event{s, ok})
	})

	s, err := p.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	remove()
	_, err = p.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, []event{{s, true}, {Session{}, false}}, events)
}

func TestPostgresUsers(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping Postgres tests")
	}
	ctx := context.Background()
	db, err := sql.Open("pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users, err := NewPostgresUsers(ctx, db)
	require.NoError(t, err)

	email := uuid.NewString() + "@example.com"
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, email) })

	u := User{ID: uuid.NewString(), Email: email, PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, users.CreateUser(ctx, u))
	assert.ErrorIs(t, users.CreateUser(ctx, User{ID: uuid.NewString(), Email: email, PasswordHash: "y", CreatedAt: u.CreatedAt}), ErrEmailTaken)

	got, err := users.UserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.UserByEmail(ctx, "missing-"+email)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}
