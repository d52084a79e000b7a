package matching

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	api "LedgerCorpSuite/api"
	"LedgerCorpSuite/api/auth"
	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
	"LedgerCorpSuite/api/recon/transactions"
	"LedgerCorpSuite/internal/config"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so reads can run
// inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadOpenMatchables returns the tenant's matchable records with outstanding
// balance left, oldest first so auto-match settles older records before newer
// ones.
func loadOpenMatchables(ctx context.Context, q querier, tenantID string) ([]Matchable, error) {
	rows, err := q.Query(ctx, `
		SELECT matchable_id, kind, record_date, description, COALESCE(reference, ''),
		       currency, amount::text, outstanding_balance::text
		FROM reconmatchable
		WHERE tenant_id = $1 AND outstanding_balance > 0
		ORDER BY record_date, matchable_id`, tenantID)
	if err != nil {
		return nil, reconerr.Internal(constants.ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []Matchable
	for rows.Next() {
		var m Matchable
		var amountText, outstandingText string
		if err := rows.Scan(&m.MatchableID, &m.Kind, &m.Date, &m.Description, &m.Reference,
			&m.Currency, &amountText, &outstandingText); err != nil {
			return nil, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		var aerr error
		if m.Amount, aerr = decimal.NewFromString(amountText); aerr != nil {
			return nil, reconerr.Internal(constants.ErrDatabaseScanFailed, aerr)
		}
		if m.Outstanding, aerr = decimal.NewFromString(outstandingText); aerr != nil {
			return nil, reconerr.Internal(constants.ErrDatabaseScanFailed, aerr)
		}
		out = append(out, m)
	}
	return out, nil
}

// SuggestedMatchesHandler ranks the open matchables against one transaction.
// Read-only: nothing is committed.
func SuggestedMatchesHandler(pool *pgxpool.Pool, gate auth.Gate, tuning config.MatchTuning) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:view", "match") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		transactionID := r.URL.Query().Get("transaction_id")
		if transactionID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		var txn transactions.BankTransaction
		var currency, amountText string
		err := pool.QueryRow(ctx, `
			SELECT t.transaction_id, t.txn_date, t.description, t.amount::text, t.direction,
			       COALESCE(t.reference, ''), t.ignored, a.currency
			FROM reconbanktransaction t
			JOIN reconbankaccount a ON a.account_id = t.account_id AND a.tenant_id = t.tenant_id
			WHERE t.tenant_id = $1 AND t.transaction_id = $2`,
			tenantID, transactionID).
			Scan(&txn.TransactionID, &txn.Date, &txn.Description, &amountText, &txn.Direction,
				&txn.Reference, &txn.Ignored, &currency)
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrTransactionNotFound))
			return
		}
		txn.Amount, err = decimal.NewFromString(amountText)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
			return
		}

		pooled, lerr := loadOpenMatchables(ctx, pool, tenantID)
		if lerr != nil {
			api.RespondWithReconError(w, lerr)
			return
		}

		candidates := ScoreCandidates(txn, currency, pooled, tuning)
		if candidates == nil {
			candidates = []Candidate{}
		}
		api.RespondWithPayload(w, true, "", candidates)
	}
}

// lockDraftSession locks the session row and verifies it is still a draft.
// Every state-mutating match operation goes through this so concurrent
// completion cannot interleave with match writes.
func lockDraftSession(ctx context.Context, tx pgx.Tx, tenantID, reconciliationID string) (accountID string, startDate, endDate time.Time, err error) {
	var status string
	err = tx.QueryRow(ctx, `
		SELECT account_id, start_date, end_date, status
		FROM reconciliation
		WHERE tenant_id = $1 AND reconciliation_id = $2
		FOR UPDATE`, tenantID, reconciliationID).
		Scan(&accountID, &startDate, &endDate, &status)
	if err != nil {
		err = reconerr.NotFound(constants.ErrReconciliationNotFound)
		return
	}
	if status != constants.StatusDraft {
		err = reconerr.InvalidState(constants.ErrNotDraft)
	}
	return
}

// ManualMatchHandler commits an operator-chosen match. Partial settlement is
// allowed: the amount may be less than the transaction amount but never more
// than the matchable's outstanding balance.
func ManualMatchHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:match", "match") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID           string `json:"user_id"`
			ReconciliationID string `json:"reconciliation_id"`
			TransactionID    string `json:"transaction_id"`
			MatchableID      string `json:"matchable_id"`
			Amount           string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.ReconciliationID == "" || req.TransactionID == "" || req.MatchableID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionFailed)
			return
		}
		defer tx.Rollback(ctx)

		accountID, _, _, serr := lockDraftSession(ctx, tx, tenantID, req.ReconciliationID)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}

		var txnAmountText, txnAccountID, accountCurrency string
		var ignored, matched bool
		err = tx.QueryRow(ctx, `
			SELECT t.account_id, t.amount::text, t.ignored, a.currency,
			       EXISTS (SELECT 1 FROM reconmatch m WHERE m.transaction_id = t.transaction_id)
			FROM reconbanktransaction t
			JOIN reconbankaccount a ON a.account_id = t.account_id AND a.tenant_id = t.tenant_id
			WHERE t.tenant_id = $1 AND t.transaction_id = $2
			FOR UPDATE OF t`, tenantID, req.TransactionID).
			Scan(&txnAccountID, &txnAmountText, &ignored, &accountCurrency, &matched)
		if err != nil || txnAccountID != accountID {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrTransactionNotFound))
			return
		}
		if ignored {
			api.RespondWithReconError(w, reconerr.Validation(constants.ErrTransactionIgnored))
			return
		}
		if matched {
			api.RespondWithReconError(w, reconerr.Conflict(constants.ErrTransactionMatched))
			return
		}

		txnAmount, aerr := decimal.NewFromString(txnAmountText)
		if aerr != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
			return
		}
		amount := txnAmount
		if req.Amount != "" {
			if amount, aerr = decimal.NewFromString(req.Amount); aerr != nil {
				api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
				return
			}
		}

		var kind, matchableCurrency, outstandingText string
		err = tx.QueryRow(ctx, `
			SELECT kind, currency, outstanding_balance::text
			FROM reconmatchable
			WHERE tenant_id = $1 AND matchable_id = $2
			FOR UPDATE`, tenantID, req.MatchableID).
			Scan(&kind, &matchableCurrency, &outstandingText)
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrMatchableNotFound))
			return
		}
		if matchableCurrency != accountCurrency {
			api.RespondWithReconError(w, reconerr.Validation(constants.ErrCurrencyMismatch))
			return
		}
		outstanding, aerr := decimal.NewFromString(outstandingText)
		if aerr != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
			return
		}
		if verr := CheckMatchAmount(amount, outstanding); verr != nil {
			api.RespondWithReconError(w, verr)
			return
		}

		matchID := uuid.New().String()
		if _, err := tx.Exec(ctx, `
			INSERT INTO reconmatch
				(match_id, tenant_id, reconciliation_id, transaction_id, matchable_type, matchable_id, match_type, amount, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			matchID, tenantID, req.ReconciliationID, req.TransactionID, kind, req.MatchableID,
			constants.MatchManual, amount.String(), userID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if _, err := tx.Exec(ctx, `
			UPDATE reconmatchable
			SET outstanding_balance = outstanding_balance - $3
			WHERE tenant_id = $1 AND matchable_id = $2`,
			tenantID, req.MatchableID, amount.String()); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}

		api.LogInfo("manual match %s: txn %s -> %s %s for %s (tenant %s)",
			matchID, req.TransactionID, kind, req.MatchableID, amount.String(), tenantID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"match_id":   matchID,
			"match_type": constants.MatchManual,
			"amount":     amount.String(),
		})
	}
}

// AutoMatchHandler runs the unsupervised exact-then-fuzzy pass over the
// session's unmatched transactions. Safe to re-run: committed matches are
// never re-evaluated or displaced.
func AutoMatchHandler(pool *pgxpool.Pool, gate auth.Gate, tuning config.MatchTuning) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:match", "match") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID           string `json:"user_id"`
			ReconciliationID string `json:"reconciliation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReconciliationID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionFailed)
			return
		}
		defer tx.Rollback(ctx)

		accountID, startDate, endDate, serr := lockDraftSession(ctx, tx, tenantID, req.ReconciliationID)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}

		var currency string
		if err := tx.QueryRow(ctx, `
			SELECT currency FROM reconbankaccount
			WHERE tenant_id = $1 AND account_id = $2`, tenantID, accountID).Scan(&currency); err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrAccountNotFound))
			return
		}

		rows, err := tx.Query(ctx, `
			SELECT t.transaction_id, t.txn_date, t.description, t.amount::text, t.direction, COALESCE(t.reference, '')
			FROM reconbanktransaction t
			WHERE t.tenant_id = $1 AND t.account_id = $2
			  AND t.txn_date BETWEEN $3 AND $4
			  AND t.ignored = false
			  AND NOT EXISTS (SELECT 1 FROM reconmatch m WHERE m.transaction_id = t.transaction_id)
			ORDER BY t.txn_date, t.transaction_id`,
			tenantID, accountID, startDate, endDate)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		var txns []transactions.BankTransaction
		for rows.Next() {
			var t transactions.BankTransaction
			var amountText string
			if err := rows.Scan(&t.TransactionID, &t.Date, &t.Description, &amountText, &t.Direction, &t.Reference); err != nil {
				rows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			if t.Amount, err = decimal.NewFromString(amountText); err != nil {
				rows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			txns = append(txns, t)
		}
		rows.Close()

		pooled, lerr := loadOpenMatchables(ctx, tx, tenantID)
		if lerr != nil {
			api.RespondWithReconError(w, lerr)
			return
		}

		plan := PlanAutoMatches(txns, currency, pooled, tuning)
		for _, p := range plan {
			if _, err := tx.Exec(ctx, `
				INSERT INTO reconmatch
					(match_id, tenant_id, reconciliation_id, transaction_id, matchable_type, matchable_id, match_type, amount, created_by)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				uuid.New().String(), tenantID, req.ReconciliationID, p.TransactionID,
				p.MatchableKind, p.MatchableID, p.MatchType, p.Amount.String(), userID); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
				return
			}
			if _, err := tx.Exec(ctx, `
				UPDATE reconmatchable
				SET outstanding_balance = outstanding_balance - $3
				WHERE tenant_id = $1 AND matchable_id = $2`,
				tenantID, p.MatchableID, p.Amount.String()); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
				return
			}
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}

		api.LogInfo("auto-match: %d of %d matched (reconciliation %s, tenant %s)",
			len(plan), len(txns), req.ReconciliationID, tenantID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"matched": len(plan),
			"total":   len(txns),
		})
	}
}

// CommittedMatch is one persisted match row as the listing exposes it.
type CommittedMatch struct {
	MatchID       string          `json:"match_id"`
	TransactionID string          `json:"transaction_id"`
	MatchableID   string          `json:"matchable_id"`
	MatchableKind string          `json:"matchable_kind"`
	MatchType     string          `json:"match_type"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ListMatchesHandler returns a session's committed matches so exports and
// review screens see what settled what, not just a matched flag.
func ListMatchesHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:view", "match") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		reconciliationID := r.URL.Query().Get("reconciliation_id")
		if reconciliationID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		rows, err := pool.Query(ctx, `
			SELECT match_id, transaction_id, matchable_id, matchable_type, match_type,
			       amount::text, created_by, created_at
			FROM reconmatch
			WHERE tenant_id = $1 AND reconciliation_id = $2
			ORDER BY created_at, match_id`, tenantID, reconciliationID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		defer rows.Close()

		out := []CommittedMatch{}
		for rows.Next() {
			var m CommittedMatch
			var amountText string
			if err := rows.Scan(&m.MatchID, &m.TransactionID, &m.MatchableID, &m.MatchableKind,
				&m.MatchType, &amountText, &m.CreatedBy, &m.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			if m.Amount, err = decimal.NewFromString(amountText); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			out = append(out, m)
		}
		api.RespondWithPayload(w, true, "", out)
	}
}

// UnmatchHandler deletes a match and restores the matchable's outstanding
// balance. Allowed only while the owning session is a draft.
func UnmatchHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:match", "match") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID  string `json:"user_id"`
			MatchID string `json:"match_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MatchID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionFailed)
			return
		}
		defer tx.Rollback(ctx)

		var reconciliationID, matchableID, amountText, status string
		err = tx.QueryRow(ctx, `
			SELECT m.reconciliation_id, m.matchable_id, m.amount::text, s.status
			FROM reconmatch m
			JOIN reconciliation s ON s.reconciliation_id = m.reconciliation_id AND s.tenant_id = m.tenant_id
			WHERE m.tenant_id = $1 AND m.match_id = $2
			FOR UPDATE`, tenantID, req.MatchID).
			Scan(&reconciliationID, &matchableID, &amountText, &status)
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrMatchNotFound))
			return
		}
		if status != constants.StatusDraft {
			api.RespondWithReconError(w, reconerr.InvalidState(constants.ErrNotDraft))
			return
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM reconmatch WHERE tenant_id = $1 AND match_id = $2`,
			tenantID, req.MatchID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if _, err := tx.Exec(ctx, `
			UPDATE reconmatchable
			SET outstanding_balance = outstanding_balance + $3
			WHERE tenant_id = $1 AND matchable_id = $2`,
			tenantID, matchableID, amountText); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}
		api.RespondWithResult(w, true, "")
	}
}
