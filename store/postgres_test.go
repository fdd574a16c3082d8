package store

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
)

func testPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping Postgres tests")
	}
	ctx := context.Background()
	db, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewPostgresStore(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPostgresStore_InsertListUpdateDelete(t *testing.T) {
	s := testPostgresStore(t)
	ctx := context.Background()
	owner := uniqueOwner(t)
	t.Cleanup(func() { cleanupOwner(t, s, owner) })

	a, err := s.Insert(ctx, owner, "a", "<p>a</p>")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Insert(ctx, owner, "b", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Update(ctx, b.ID, Patch{Title: strPtr("renamed"), Body: strPtr("<h1>x</h1>"), Version: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, b.ID, Patch{Body: strPtr("old"), Version: 1}); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("got %v, want ErrStaleWrite", err)
	}

	docs, err := s.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].ID != a.ID || docs[1].ID != b.ID {
		t.Fatalf("unexpected list: %+v", docs)
	}
	if docs[1].Title != "renamed" || docs[1].Body != "<h1>x</h1>" || docs[1].Version != 1 {
		t.Errorf("unexpected doc: %+v", docs[1])
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, a.ID, Patch{Title: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update deleted: got %v, want ErrNotFound", err)
	}
}
