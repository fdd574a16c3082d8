package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alimasry/go-journal-editor/internal/config"
	"github.com/alimasry/go-journal-editor/internal/log"
	"github.com/alimasry/go-journal-editor/journal"
)

func importCmd() *cobra.Command {
	var email string

	cmd := cobra.Command{
		Use:   "import FILE...",
		Short: "Import Markdown files as journal documents.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.Get()
			cfg := config.Load()
			if err := requirePersistent(cfg); err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			user, err := b.users.UserByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(email)))
			if err != nil {
				return errors.Wrapf(err, "look up %s", email)
			}

			for _, path := range args {
				src, err := os.ReadFile(path)
				if err != nil {
					return errors.Wrapf(err, "read %s", path)
				}
				imp, err := journal.ImportMarkdown(src)
				if err != nil {
					return errors.Wrapf(err, "import %s", path)
				}
				title := imp.Title
				if title == "" {
					title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				d, err := b.docs.Insert(cmd.Context(), user.ID, title, imp.Body)
				if err != nil {
					return errors.Wrapf(err, "store %s", path)
				}
				logger.Debug("imported document", zap.String("path", path), zap.String("doc_id", d.ID))
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.ID, title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the account that owns the imported documents.")
	_ = cmd.MarkFlagRequired("email")

	return &cmd
}

// requirePersistent rejects configurations whose accounts or documents
// live only in memory: the import could not find the account and its
// documents would vanish on exit.
func requirePersistent(cfg config.Config) error {
	switch {
	case cfg.DatabaseURL == "":
		return errors.New("import needs DATABASE_URL: accounts are not persisted without it")
	case cfg.Store == config.StoreMemory:
		return errors.Errorf("import needs a persistent document store, JOURNAL_STORE is %q", cfg.Store)
	}
	return nil
}
