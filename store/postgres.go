package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

// OpenPostgres opens a pooled connection through the pgx driver and checks
// that the server answers.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping db")
	}
	return db, nil
}

var documentSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content_html TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		version BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user_created ON documents(user_id, created_at)`,
}

// PostgresStore is a Postgres-backed implementation of DocumentStore.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the documents table if needed and returns a
// store using db.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	for _, stmt := range documentSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Wrap(err, "create documents schema")
		}
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, content_html, created_at, updated_at, version
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list documents")
	}
	defer rows.Close()

	result := make([]Document, 0)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Body, &d.CreatedAt, &d.UpdatedAt, &d.Version); err != nil {
			return nil, errors.Wrap(err, "scan document")
		}
		result = append(result, d)
	}
	return result, errors.Wrap(rows.Err(), "list documents")
}

func (s *PostgresStore) Insert(ctx context.Context, ownerID, title, body string) (Document, error) {
	now := time.Now().UTC()
	d := Document{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, title, content_html, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		d.ID, d.OwnerID, d.Title, d.Body, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return Document{}, errors.Wrap(err, "insert document")
	}
	return d, nil
}

// Update writes the non-nil patch fields. A versioned patch only applies
// when it is newer than the stored row.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) error {
	sets := []string{}
	args := []interface{}{id}
	argPos := 2

	if patch.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argPos))
		args = append(args, *patch.Title)
		argPos++
	}
	if patch.Body != nil {
		sets = append(sets, fmt.Sprintf("content_html = $%d", argPos))
		args = append(args, *patch.Body)
		argPos++
	}
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, updatedAt.UTC())
	argPos++

	where := "id = $1"
	if patch.Version != 0 {
		sets = append(sets, fmt.Sprintf("version = $%d", argPos))
		where += fmt.Sprintf(" AND version < $%d", argPos)
		args = append(args, patch.Version)
	}

	query := fmt.Sprintf("UPDATE documents SET %s WHERE %s", strings.Join(sets, ", "), where)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "update document %q", id)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return errors.Wrapf(err, "update document %q", id)
	}

	var stored int64
	err = s.db.QueryRowContext(ctx, `SELECT version FROM documents WHERE id = $1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "document %q", id)
	}
	if err != nil {
		return errors.Wrapf(err, "update document %q", id)
	}
	return errors.Wrapf(ErrStaleWrite, "document %q at version %d, patch version %d", id, stored, patch.Version)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete document %q", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete document %q", id)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "document %q", id)
	}
	return nil
}
