package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
)

func testFirestoreClient(t *testing.T) *firestore.Client {
	t.Helper()
	projectID := os.Getenv("FIRESTORE_PROJECT")
	if projectID == "" {
		t.Skip("FIRESTORE_PROJECT not set, skipping Firestore tests")
	}
	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to create Firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// uniqueOwner returns an owner id that isolates one test's documents.
func uniqueOwner(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

// cleanupOwner deletes every document of owner.
func cleanupOwner(t *testing.T, s DocumentStore, owner string) {
	t.Helper()
	ctx := context.Background()
	docs, err := s.List(ctx, owner)
	if err != nil {
		return
	}
	for _, d := range docs {
		s.Delete(ctx, d.ID)
	}
}

func TestFirestoreStore_InsertAndList(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	owner := uniqueOwner(t)
	t.Cleanup(func() { cleanupOwner(t, s, owner) })

	first, err := s.Insert(ctx, owner, "first", "<p>1</p>")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Insert(ctx, owner, "second", "")
	if err != nil {
		t.Fatal(err)
	}

	docs, err := s.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].ID != first.ID || docs[1].ID != second.ID {
		t.Fatalf("unexpected list: %+v", docs)
	}
	if docs[0].Body != "<p>1</p>" || docs[0].OwnerID != owner {
		t.Errorf("unexpected doc: %+v", docs[0])
	}
}

func TestFirestoreStore_UpdateVersioned(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	owner := uniqueOwner(t)
	t.Cleanup(func() { cleanupOwner(t, s, owner) })

	doc, _ := s.Insert(ctx, owner, "t", "")
	if err := s.Update(ctx, doc.ID, Patch{Body: strPtr("v2"), Version: 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, doc.ID, Patch{Body: strPtr("v1"), Version: 1}); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("got %v, want ErrStaleWrite", err)
	}

	docs, _ := s.List(ctx, owner)
	if len(docs) != 1 || docs[0].Body != "v2" || docs[0].Version != 2 {
		t.Errorf("unexpected list: %+v", docs)
	}
}

func TestFirestoreStore_NotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()

	if err := s.Update(ctx, "nonexistent-doc-xyz", Patch{Title: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "nonexistent-doc-xyz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete: got %v, want ErrNotFound", err)
	}
}
