package recon

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	api "LedgerCorpSuite/api"
	"LedgerCorpSuite/api/auth"
	"LedgerCorpSuite/api/recon/accounts"
	"LedgerCorpSuite/api/recon/matching"
	"LedgerCorpSuite/api/recon/reconciliation"
	"LedgerCorpSuite/api/recon/statement"
	"LedgerCorpSuite/api/recon/transactions"
	"LedgerCorpSuite/internal/config"
)

// NewRouter wires the reconciliation HTTP surface. Every scoped route runs
// behind the tenant middleware so handlers always see a resolved user and
// tenant in the request context.
func NewRouter(pool *pgxpool.Pool, tuning config.MatchTuning) *mux.Router {
	gate := auth.GlobalGate()
	registry := statement.DefaultRegistry()

	router := mux.NewRouter()
	router.HandleFunc("/recon/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Recon Service is active"))
	}).Methods("GET")
	router.HandleFunc("/recon/statement/formats", statement.FormatsHandler(registry)).Methods("GET")

	scoped := router.PathPrefix("/recon").Subrouter()
	scoped.Use(api.TenantMiddleware())

	scoped.HandleFunc("/accounts/create", accounts.CreateAccountHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/accounts", accounts.ListAccountsHandler(pool, gate)).Methods("GET")
	scoped.HandleFunc("/accounts/get", accounts.GetAccountHandler(pool, gate)).Methods("GET")

	scoped.HandleFunc("/statement/preview", statement.PreviewStatementHandler(pool, registry, gate)).Methods("POST")
	scoped.HandleFunc("/statement/import", transactions.ImportStatementHandler(pool, gate)).Methods("POST")

	scoped.HandleFunc("/transactions", transactions.ListTransactionsHandler(pool, gate)).Methods("GET")
	scoped.HandleFunc("/transactions/ignore", transactions.SetIgnoredHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/transactions/category", transactions.UpdateCategoryHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/transactions/delete", transactions.DeleteTransactionHandler(pool, gate)).Methods("POST")

	scoped.HandleFunc("/matches", matching.ListMatchesHandler(pool, gate)).Methods("GET")
	scoped.HandleFunc("/matches/suggestions", matching.SuggestedMatchesHandler(pool, gate, tuning)).Methods("GET")
	scoped.HandleFunc("/matches/manual", matching.ManualMatchHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/matches/auto", matching.AutoMatchHandler(pool, gate, tuning)).Methods("POST")
	scoped.HandleFunc("/matches/unmatch", matching.UnmatchHandler(pool, gate)).Methods("POST")

	scoped.HandleFunc("/reconciliations/create", reconciliation.CreateReconciliationHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/reconciliations", reconciliation.ListReconciliationsHandler(pool, gate)).Methods("GET")
	scoped.HandleFunc("/reconciliations/summary", reconciliation.SummaryHandler(pool, gate)).Methods("GET")
	scoped.HandleFunc("/reconciliations/adjustments/add", reconciliation.AddAdjustmentHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/reconciliations/adjustments/remove", reconciliation.RemoveAdjustmentHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/reconciliations/complete", reconciliation.CompleteReconciliationHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/reconciliations/approve", reconciliation.ApproveReconciliationHandler(pool, gate)).Methods("POST")
	scoped.HandleFunc("/reconciliations/reopen", reconciliation.ReopenReconciliationHandler(pool, gate)).Methods("POST")

	return router
}

// StartReconService serves the reconciliation routes on RECON_PORT.
func StartReconService(pool *pgxpool.Pool, tuning config.MatchTuning) {
	router := NewRouter(pool, tuning)

	port := os.Getenv("RECON_PORT")
	if port == "" {
		port = "7143"
	}
	log.Println("Recon Service started on :" + port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Recon Service failed: %v", err)
	}
}
