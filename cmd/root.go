// Package cmd implements the teambuilder command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isdelr/teambuilder-be/internal/config"
	"github.com/isdelr/teambuilder-be/internal/logger"
)

// NewRootCommand builds the teambuilder command tree.
func NewRootCommand() *cobra.Command {
	var cfg config.Config

	rootCmd := &cobra.Command{
		Use:   "teambuilder",
		Short: "Team builder web server",
		Long: `teambuilder serves the team builder web app: accounts, sessions and
saved teams of six creatures, backed by SQLite or PostgreSQL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = *loaded
			return logger.Init(cfg.LogLevel, !cfg.IsProduction())
		},
	}

	// Flag defaults come from the environment. A bad value is reported again
	// by config.Load.
	def, _ := config.Defaults()
	config.RegisterFlags(rootCmd.PersistentFlags(), def)

	serve := newServeCommand(&cfg)
	rootCmd.AddCommand(serve, newMigrateCommand(&cfg))

	// Running the bare command serves.
	rootCmd.RunE = serve.RunE
	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
