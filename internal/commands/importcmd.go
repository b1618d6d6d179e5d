package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/importer"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var bankAccountID string
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a bank statement CSV into a bank account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			return runImport(cmd, opts, cfg, args[0], bankAccountID, format)
		},
	}

	cmd.Flags().StringVar(&bankAccountID, "bank-account", "", "bank account id to import into (required)")
	_ = cmd.MarkFlagRequired("bank-account")
	cmd.Flags().StringVar(&format, "format", "generic", "statement format")

	return cmd
}

func runImport(cmd *cobra.Command, opts *rootOptions, cfg *config.Config, path, bankAccountID, format string) error {
	registry := importer.DefaultRegistry()
	parser := registry.Get(format)
	if parser == nil {
		return fmt.Errorf("unknown format %q (available: %s)", format, strings.Join(registry.Formats(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	rows, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing statement: %w", err)
	}

	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx := opts.scopeContext(cmd.Context())
	result, err := svcs.banking.ImportBatch(ctx, bankAccountID, rows)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Batch %s: %d imported, %d duplicates skipped\n",
		result.BatchID, result.Imported, result.Skipped)
	return nil
}
