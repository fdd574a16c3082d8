package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alimasry/go-journal-editor/editor"
	"github.com/alimasry/go-journal-editor/internal/config"
	"github.com/alimasry/go-journal-editor/internal/log"
	"github.com/alimasry/go-journal-editor/journal"
	"github.com/alimasry/go-journal-editor/server"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := cobra.Command{
		Use:   "serve",
		Short: "Serve the editor over HTTP and WebSocket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.Addr = addr
			}
			logger := log.Get()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides JOURNAL_ADDR).")

	return &cmd
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	writer := journal.NewWriter(b.docs, cfg.WriteTimeout, logger)
	hub := server.NewHub(server.Config{
		Store:        b.docs,
		LastActive:   b.last,
		Users:        b.users,
		Writer:       writer,
		Keys:         editor.DefaultKeyMap(),
		StoreTimeout: cfg.WriteTimeout,
		Logger:       logger,
	})
	go hub.Run()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewHandler(hub, cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
	})
	err = g.Wait()

	hub.Close()
	writer.Wait()
	return multierr.Append(err, b.Close())
}
