package cli

import (
	"context"
	"os/signal"
	"syscall"

	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/app"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", false, "Apply pending database migrations before serving (postgres driver only)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("driver", cfg.Database.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting wallet ledger")

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate && cfg.Database.Driver == "postgres" {
		pool, err := app.OpenPostgres(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		_, err = pgStorage.Migrate(ctx, pool, log)
		pool.Close()
		if err != nil {
			return err
		}
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}
