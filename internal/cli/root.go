// Package cli implements the wallet-ledger command line.
package cli

import (
	"fmt"
	"os"

	"wallet-ledger/config"
	"wallet-ledger/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wallet-ledger",
	Short: "Customer wallet ledger and gift certificate redemption server",
	Long: `wallet-ledger keeps one stored-value wallet per customer and organization,
records every balance change as an append-only ledger entry and redeems
gift certificates into wallets exactly once.

Configuration is read from config.yaml (or --config), a .env file and
WLD_* environment variables, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default ./config.yaml or ./config/config.yaml)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Pretty), nil
}
