// Package httpapi exposes the ledger services over a JSON HTTP API.
// Authentication is delegated upstream; requests carry identity in the
// X-Tenant-ID and X-Actor-ID headers and are rejected without them.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tallyhq/tally/internal/accounts"
	"github.com/tallyhq/tally/internal/banking"
	"github.com/tallyhq/tally/internal/importer"
	"github.com/tallyhq/tally/internal/journal"
	"github.com/tallyhq/tally/internal/reconcile"
	"github.com/tallyhq/tally/internal/report"
)

// API bundles the services the HTTP layer dispatches to.
type API struct {
	accounts  *accounts.Service
	journal   *journal.Service
	banking   *banking.Service
	reconcile *reconcile.Service
	report    *report.Service
	parsers   *importer.Registry
	log       *slog.Logger
}

// New creates the API surface.
func New(
	accountsSvc *accounts.Service,
	journalSvc *journal.Service,
	bankingSvc *banking.Service,
	reconcileSvc *reconcile.Service,
	reportSvc *report.Service,
	parsers *importer.Registry,
	log *slog.Logger,
) *API {
	return &API{
		accounts:  accountsSvc,
		journal:   journalSvc,
		banking:   bankingSvc,
		reconcile: reconcileSvc,
		report:    reportSvc,
		parsers:   parsers,
		log:       log,
	}
}

// Router builds the chi router with all routes mounted under /v1.
func (a *API) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.withScope)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", a.listAccounts)
			r.Post("/", a.createAccount)
			r.Post("/template", a.applyTemplate)
			r.Get("/{accountID}", a.getAccount)
			r.Patch("/{accountID}", a.updateAccount)
			r.Delete("/{accountID}", a.deactivateAccount)
		})

		r.Route("/journal-entries", func(r chi.Router) {
			r.Get("/", a.listEntries)
			r.Post("/", a.createEntry)
			r.Get("/{entryID}", a.getEntry)
			r.Patch("/{entryID}", a.updateEntry)
			r.Post("/{entryID}/post", a.postEntry)
			r.Post("/{entryID}/void", a.voidEntry)
		})

		r.Route("/bank-accounts", func(r chi.Router) {
			r.Get("/", a.listBankAccounts)
			r.Post("/", a.createBankAccount)
			r.Get("/{bankAccountID}", a.getBankAccount)
			r.Put("/{bankAccountID}/coa-account", a.linkCOAAccount)
			r.Get("/{bankAccountID}/transactions", a.listTransactions)
			r.Post("/{bankAccountID}/import", a.importTransactions)
		})

		r.Route("/bank-transactions/{txnID}", func(r chi.Router) {
			r.Get("/", a.getTransaction)
			r.Post("/categorize", a.categorizeTransaction)
			r.Post("/post", a.postTransaction)
			r.Post("/exclude", a.excludeTransaction)
			r.Get("/suggestion", a.suggestAccount)
		})

		r.Route("/reconciliations", func(r chi.Router) {
			r.Post("/", a.startReconciliation)
			r.Get("/{reconciliationID}", a.getReconciliation)
			r.Patch("/{reconciliationID}/cleared-balance", a.updateClearedBalance)
			r.Get("/{reconciliationID}/eligible-transactions", a.listEligibleTransactions)
			r.Post("/{reconciliationID}/complete", a.completeReconciliation)
			r.Post("/{reconciliationID}/void", a.voidReconciliation)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", a.trialBalance)
			r.Get("/balance-check", a.balanceCheck)
		})
	})

	return r
}
