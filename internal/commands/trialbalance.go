package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/report"
	"github.com/tallyhq/tally/internal/store"
)

func newTrialBalanceCommand(opts *rootOptions) *cobra.Command {
	var asOfRaw string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			var asOf *time.Time
			if asOfRaw != "" {
				t, err := store.ParseDate(asOfRaw)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				asOf = &t
			}

			return runTrialBalance(cmd, opts, cfg, asOf)
		},
	}

	cmd.Flags().StringVar(&asOfRaw, "as-of", "", "include postings dated on or before this date (2006-01-02)")

	return cmd
}

func runTrialBalance(cmd *cobra.Command, opts *rootOptions, cfg *config.Config, asOf *time.Time) error {
	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx := opts.scopeContext(cmd.Context())
	tb, err := svcs.report.Compute(ctx, asOf)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tACCOUNT\tTYPE\tDEBIT\tCREDIT\tBALANCE")
	for _, row := range tb.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.AccountNumber, row.AccountName, row.AccountType,
			row.TotalDebit.StringFixed(2), row.TotalCredit.StringFixed(2),
			row.Balance.StringFixed(2))
	}
	fmt.Fprintf(w, "\tTOTAL\t\t%s\t%s\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if err := w.Flush(); err != nil {
		return err
	}

	if !tb.TotalDebit.Equal(tb.TotalCredit) {
		return report.ErrOutOfBalance
	}
	return nil
}
