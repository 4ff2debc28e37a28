package main

import (
	"fmt"
	"os"

	"github.com/jonathan/visa-navigator/internal/db"
	"github.com/spf13/cobra"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply or inspect the Postgres schema migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(db.MigrateUp), string(db.MigrateDown), string(db.MigrateVersion)},
	RunE:      runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := db.MigrateUp
	if len(args) == 1 {
		command = db.MigrationCommand(args[0])
	}

	databaseURL := migrateDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	res, err := db.Migrate(databaseURL, command)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case res.NoChange:
		_, _ = fmt.Fprintf(out, "schema already at version %d\n", res.Version)
	case res.Dirty:
		_, _ = fmt.Fprintf(out, "schema version %d (dirty)\n", res.Version)
	default:
		_, _ = fmt.Fprintf(out, "schema version %d\n", res.Version)
	}
	return nil
}
