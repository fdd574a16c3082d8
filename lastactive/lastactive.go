// Package lastactive remembers, per user, which document to reopen.
package lastactive

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix is prepended to the user id to form the pointer key.
const KeyPrefix = "minimal-journal-last-doc-id-"

// Store holds the last-active document pointer.
type Store interface {
	// Get returns the remembered document id. ok is false when none is set.
	Get(ctx context.Context, userID string) (docID string, ok bool, err error)
	Set(ctx context.Context, userID, docID string) error
}

// RedisStore keeps pointers in Redis, without expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(userID string) string { return KeyPrefix + userID }

func (s *RedisStore) Get(ctx context.Context, userID string) (string, bool, error) {
	docID, err := s.client.Get(ctx, key(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "get last-active document")
	}
	return docID, true, nil
}

func (s *RedisStore) Set(ctx context.Context, userID, docID string) error {
	if err := s.client.Set(ctx, key(userID), docID, 0).Err(); err != nil {
		return errors.Wrap(err, "set last-active document")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore keeps pointers in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.docs[key(userID)]
	return docID, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, userID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key(userID)] = docID
	return nil
}
