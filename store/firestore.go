package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: "documents",
	}
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) List(ctx context.Context, ownerID string) ([]Document, error) {
	iter := s.client.Collection(s.collection).
		Where("userId", "==", ownerID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	result := make([]Document, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "list documents")
		}
		result = append(result, snapshotToDocument(snap))
	}
	// Documents created in the same instant keep a stable order.
	sortByCreation(result)
	return result, nil
}

func snapshotToDocument(snap *firestore.DocumentSnapshot) Document {
	data := snap.Data()
	owner, _ := data["userId"].(string)
	title, _ := data["title"].(string)
	body, _ := data["contentHtml"].(string)
	version, _ := data["version"].(int64)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)
	return Document{
		ID:        snap.Ref.ID,
		OwnerID:   owner,
		Title:     title,
		Body:      body,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Version:   version,
	}
}

func (s *FirestoreStore) Insert(ctx context.Context, ownerID, title, body string) (Document, error) {
	now := time.Now().UTC()
	ref := s.client.Collection(s.collection).NewDoc()
	_, err := ref.Create(ctx, map[string]interface{}{
		"userId":      ownerID,
		"title":       title,
		"contentHtml": body,
		"version":     int64(0),
		"createdAt":   now,
		"updatedAt":   now,
	})
	if err != nil {
		return Document{}, errors.Wrap(err, "insert document")
	}
	return Document{
		ID:        ref.ID,
		OwnerID:   ownerID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Update applies patch inside a transaction so the version check and the
// write see the same snapshot.
func (s *FirestoreStore) Update(ctx context.Context, id string, patch Patch) error {
	ref := s.docRef(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return errors.Wrapf(ErrNotFound, "document %q", id)
		}
		if err != nil {
			return err
		}
		stored, _ := snap.Data()["version"].(int64)
		if patch.stale(stored) {
			return errors.Wrapf(ErrStaleWrite, "document %q at version %d, patch version %d", id, stored, patch.Version)
		}
		return tx.Update(ref, firestoreUpdates(patch))
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleWrite) {
		return err
	}
	return errors.Wrapf(err, "update document %q", id)
}

func firestoreUpdates(patch Patch) []firestore.Update {
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	updates := []firestore.Update{{Path: "updatedAt", Value: updatedAt.UTC()}}
	if patch.Title != nil {
		updates = append(updates, firestore.Update{Path: "title", Value: *patch.Title})
	}
	if patch.Body != nil {
		updates = append(updates, firestore.Update{Path: "contentHtml", Value: *patch.Body})
	}
	if patch.Version != 0 {
		updates = append(updates, firestore.Update{Path: "version", Value: patch.Version})
	}
	return updates
}

func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	_, err := s.docRef(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return errors.Wrapf(ErrNotFound, "document %q", id)
	}
	return errors.Wrapf(err, "delete document %q", id)
}
