package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-books/meridian/internal/ledger/accounts"
	"github.com/meridian-books/meridian/internal/ledger/checks"
	"github.com/meridian-books/meridian/internal/ledger/posting"
	"github.com/meridian-books/meridian/internal/ledger/reconcile"
	"github.com/meridian-books/meridian/internal/ledger/statements"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountsHandler   *accounts.Handler
	PostingHandler    *posting.Handler
	ChecksHandler     *checks.Handler
	StatementsHandler *statements.Handler
	ReconcileHandler  *reconcile.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.AccountsHandler != nil {
		r.Route("/ledger/accounts", params.AccountsHandler.MountRoutes)
	}
	if params.PostingHandler != nil {
		r.Route("/ledger/transactions", params.PostingHandler.MountRoutes)
	}
	if params.ChecksHandler != nil {
		r.Route("/ledger/checks", params.ChecksHandler.MountRoutes)
	}
	if params.StatementsHandler != nil {
		r.Route("/ledger/statements", params.StatementsHandler.MountRoutes)
	}
	if params.ReconcileHandler != nil {
		r.Route("/ledger/reconcile", params.ReconcileHandler.MountRoutes)
	}

	return r
}
