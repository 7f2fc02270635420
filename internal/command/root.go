// Package command holds the ledgerd CLI: the HTTP server and the operator commands.
package command

import (
	"fmt"
	"os"

	"commissionledger/internal/app"
	"commissionledger/internal/config"
	"commissionledger/internal/database"
	"commissionledger/internal/logger"
	"commissionledger/internal/metrics"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// NewRootCommand builds the command tree around an already loaded configuration.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerd",
		Short: "Commission ledger and invoice accounting engine",
		Long: `ledgerd records booking commissions, issues monthly commission invoices,
collects them by SEPA direct debit and keeps a double-entry journal that can be
exported to DATEV.

Without a subcommand it starts the HTTP server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, cfg)
		},
	}

	root.AddCommand(
		newServeCommand(cfg),
		newRunInvoicesCommand(cfg),
		newExportDATEVCommand(cfg),
		newStornoCommand(cfg),
	)
	return root
}

func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")

	if err := NewRootCommand(cfg).Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap connects to the database and wires the application.
func bootstrap(cfg *config.Config) (*app.App, error) {
	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	transport, err := app.NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("outbox transport: %w", err)
	}

	provider, err := app.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("payment provider: %w", err)
	}

	return app.New(cfg, db, app.Options{
		Metrics:   metrics.Ledger(),
		Provider:  provider,
		Transport: transport,
	})
}
