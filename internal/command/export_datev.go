package command

import (
	"fmt"
	"os"
	"time"

	"commissionledger/internal/config"
	"commissionledger/internal/logger"

	"github.com/spf13/cobra"
)

func newExportDATEVCommand(cfg *config.Config) *cobra.Command {
	var from, to, out string

	cmd := &cobra.Command{
		Use:   "export-datev",
		Short: "Write the journal as a DATEV EXTF Buchungsstapel",
		Long: `Exports every accounting entry booked between --from and --to (both inclusive)
as a DATEV EXTF CSV file: UTF-8 with BOM, semicolon separated, CRLF line endings.`,
		Example: `  ledgerd export-datev --from 2024-03-01 --to 2024-03-31 --out EXTF_2024_03.csv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", from)
			if err != nil {
				return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
			}
			end, err := time.Parse("2006-01-02", to)
			if err != nil {
				return fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
			}

			a, err := bootstrap(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			file, rows, err := a.Services.Ledger.ExportDATEV(cmd.Context(), start, end.AddDate(0, 0, 1))
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(file)
				return err
			}
			if err := os.WriteFile(out, file, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			log := logger.WithComponent("cmd")
			log.Info().Str("file", out).Int("rows", rows).Msg("DATEV export written")
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last booking date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, stdout when empty")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
