package command

import (
	"fmt"

	"commissionledger/internal/config"

	"github.com/spf13/cobra"
)

func newStornoCommand(cfg *config.Config) *cobra.Command {
	var reason, actor string

	cmd := &cobra.Command{
		Use:   "storno <invoice-id>",
		Short: "Cancel an invoice with a reversing entry",
		Long: `Posts a Storno entry that mirrors the invoice's issuance entry with debit and
credit swapped, and marks the invoice CANCELLED. The original entry is kept.`,
		Example: `  ledgerd storno 5f0c... --reason "Booking cancelled by customer"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Services.Invoices.Storno(cmd.Context(), args[0], reason, actor)
			if err != nil {
				return err
			}
			flushOutbox(cmd, a)

			fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled with entry %s (%s %s -> %s)\n",
				res.Invoice.InvoiceNumber, res.Entry.EntryNumber, res.Entry.Amount, res.Entry.DebitAccount, res.Entry.CreditAccount)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the invoice is cancelled")
	cmd.Flags().StringVar(&actor, "actor", "cli", "Name recorded in the audit log")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
