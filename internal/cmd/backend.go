package cmd

import (
	"context"
	"database/sql"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/identity"
	"github.com/alimasry/go-journal-editor/internal/config"
	"github.com/alimasry/go-journal-editor/lastactive"
	"github.com/alimasry/go-journal-editor/store"
)

// backend is the set of stores a process works against.
type backend struct {
	docs    store.DocumentStore
	users   identity.UserStore
	last    lastactive.Store
	closers []func() error
}

func (b *backend) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	return err
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *backend, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &backend{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, b.Close())
		}
	}()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
	}

	switch cfg.Store {
	case config.StorePostgres:
		b.docs, err = store.NewPostgresStore(ctx, db)
		if err != nil {
			return nil, err
		}
	case config.StoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, errors.Wrap(err, "connect to firestore")
		}
		b.closers = append(b.closers, client.Close)
		b.docs = store.NewFirestoreStore(client)
	default:
		b.docs = store.NewMemoryStore()
	}
	logger.Info("document store ready", zap.String("store", cfg.Store))

	if cfg.FlushInterval > 0 {
		cached := store.NewCachedStore(b.docs, cfg.FlushInterval, logger)
		b.closers = append(b.closers, func() error { cached.Close(); return nil })
		b.docs = cached
	}

	if db != nil {
		b.users, err = identity.NewPostgresUsers(ctx, db)
		if err != nil {
			return nil, err
		}
	} else {
		b.users = identity.NewMemoryUsers()
	}

	if cfg.RedisURL != "" {
		rs, err := lastactive.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, rs.Close)
		b.last = rs
	} else {
		b.last = lastactive.NewMemoryStore()
	}
	return b, nil
}
