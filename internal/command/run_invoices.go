package command

import (
	"encoding/json"
	"time"

	"commissionledger/internal/app"
	"commissionledger/internal/config"
	"commissionledger/internal/logger"
	"commissionledger/internal/model"
	"commissionledger/internal/service"

	"github.com/spf13/cobra"
)

func newRunInvoicesCommand(cfg *config.Config) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "run-invoices",
		Short: "Issue commission invoices for a closed month",
		Long: `Bills every payee's PENDING commissions of one month, posts the ledger entries
and starts direct debits where a usable mandate exists.

Without --period the month before today is billed. Re-running a month only
bills commissions that are still PENDING.`,
		Example: `  # Bill last month
  ledgerd run-invoices

  # Bill March 2024
  ledgerd run-invoices --period 2024-03`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := service.PreviousMonth(time.Now())
			if period != "" {
				var err error
				if p, err = service.ParsePeriod(period); err != nil {
					return err
				}
			}

			a, err := bootstrap(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Services.Generator.RunForPeriod(cmd.Context(), p, model.TriggerCLI, "cli")
			if err != nil {
				return err
			}
			flushOutbox(cmd, a)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Billing month (YYYY-MM), defaults to the previous month")
	return cmd
}

// flushOutbox publishes what the command produced so operators do not wait for the server's relay.
func flushOutbox(cmd *cobra.Command, a *app.App) {
	log := logger.WithComponent("cmd")
	n, err := a.RelayOnce(cmd.Context())
	if err != nil {
		log.Warn().Err(err).Msg("outbox flush failed, the server relay will retry")
		return
	}
	log.Info().Int("published", n).Msg("outbox flushed")
}
