package identity

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

var userSchema = `CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresUsers is a UserStore on the users table.
type PostgresUsers struct {
	db *sql.DB
}

// NewPostgresUsers creates the users table if needed.
func NewPostgresUsers(ctx context.Context, db *sql.DB) (*PostgresUsers, error) {
	if _, err := db.ExecContext(ctx, userSchema); err != nil {
		return nil, errors.Wrap(err, "create users schema")
	}
	return &PostgresUsers{db: db}, nil
}

func (s *PostgresUsers) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, errors.Wrap(err, "get user by email")
	}
	return u, nil
}

func (s *PostgresUsers) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return errors.Wrap(err, "create user")
}
