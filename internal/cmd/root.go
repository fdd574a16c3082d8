package cmd

import (
	"github.com/spf13/cobra"

	"github.com/alimasry/go-journal-editor/internal/config"
	"github.com/alimasry/go-journal-editor/internal/log"
)

var (
	envFile  string
	logLevel string
	logDev   bool
)

func Root() *cobra.Command {
	cmd := cobra.Command{
		Use:           "journal",
		Short:         "Minimal rich-text journal server",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadFile(envFile); err != nil {
				return err
			}
			cfg := config.Load()
			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}
			log.Set(level, logDev || cfg.LogDev)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			log.Flush()
		},
	}

	pflags := cmd.PersistentFlags()

	pflags.StringVar(&envFile, "env-file", ".env", "File with environment variables to load.")
	pflags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	pflags.BoolVar(&logDev, "dev", false, "Human-readable development logging.")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(importCmd())

	return &cmd
}
