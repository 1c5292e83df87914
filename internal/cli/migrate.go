package cli

import (
	"fmt"

	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/app"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending PostgreSQL schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("migrate requires database.driver postgres, got %q", cfg.Database.Driver)
		}

		pool, err := app.OpenPostgres(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := pgStorage.Migrate(cmd.Context(), pool, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
		return nil
	},
}
