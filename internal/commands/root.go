// Package commands wires the CLI. Every subcommand loads tally.yaml,
// opens the store, and builds the service graph it needs.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/accounts"
	"github.com/tallyhq/tally/internal/audit"
	"github.com/tallyhq/tally/internal/banking"
	"github.com/tallyhq/tally/internal/buildinfo"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/journal"
	"github.com/tallyhq/tally/internal/reconcile"
	"github.com/tallyhq/tally/internal/report"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

// rootOptions carries the persistent flags shared by all subcommands.
type rootOptions struct {
	configPath string
	tenantID   string
	actorID    string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Double-entry ledger and bank reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "tally.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.tenantID, "tenant", "local", "tenant to operate as")
	rootCmd.PersistentFlags().StringVar(&opts.actorID, "actor", "cli", "actor recorded on writes")

	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newImportCommand(opts))
	rootCmd.AddCommand(newTrialBalanceCommand(opts))

	return rootCmd
}

// scopeContext builds a request context for CLI operations.
func (o *rootOptions) scopeContext(ctx context.Context) context.Context {
	return tenant.NewContext(ctx, tenant.Scope{TenantID: o.tenantID, ActorID: o.actorID})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// services is the fully wired service graph.
type services struct {
	db        *store.DB
	log       *slog.Logger
	accounts  *accounts.Service
	journal   *journal.Service
	banking   *banking.Service
	reconcile *reconcile.Service
	report    *report.Service
}

func buildServices(cfg *config.Config) (*services, error) {
	log := newLogger(cfg.Log.Level)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	authz := tenant.AllowAll{}
	auditor := audit.NewLogRecorder(log)

	return &services{
		db:        db,
		log:       log,
		accounts:  accounts.NewService(db, authz, auditor, log),
		journal:   journal.NewService(db, authz, auditor, log),
		banking:   banking.NewService(db, authz, auditor, log),
		reconcile: reconcile.NewService(db, authz, auditor, log),
		report:    report.NewService(db),
	}, nil
}

func (s *services) Close() error {
	return s.db.Close()
}
