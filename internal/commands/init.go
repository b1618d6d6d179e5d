package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/config"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tally project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, opts, absDir, template)
		},
	}

	cmd.Flags().StringVar(&template, "template", "small_business", "chart of accounts template (empty to skip)")

	return cmd
}

func runInit(cmd *cobra.Command, opts *rootOptions, dir, template string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// Write tally.yaml.
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, cfg.Store.Path)
	if err := config.Save(filepath.Join(dir, "tally.yaml"), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Create the database and run migrations.
	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	// Seed the chart of accounts.
	if template != "" {
		ctx := opts.scopeContext(cmd.Context())
		created, err := svcs.accounts.ApplyTemplate(ctx, template)
		if err != nil {
			return fmt.Errorf("seeding chart of accounts: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d accounts from the %s template\n", len(created), template)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized tally project at %s\n", dir)
	return nil
}
