package transactions

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	api "LedgerCorpSuite/api"
	"LedgerCorpSuite/api/auth"
	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
	"LedgerCorpSuite/api/recon/statement"
	"LedgerCorpSuite/api/utils"
)

// ImportStatementHandler commits a previously previewed batch into the
// transaction store. Re-posting the same batch is safe: every row dedups
// against what the first call inserted.
func ImportStatementHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:import", "transaction") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID  string `json:"user_id"`
			BatchID string `json:"batch_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BatchID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		accountID, rows, err := statement.LoadStagedRows(ctx, pool, tenantID, req.BatchID)
		if err != nil {
			api.RespondWithReconError(w, err)
			return
		}

		result, err := ImportRows(ctx, pool, tenantID, accountID, userID, rows)
		if err != nil {
			api.RespondWithReconError(w, err)
			return
		}

		// Staged rows are spent once imported.
		if _, derr := pool.Exec(ctx, `
			DELETE FROM reconstatementstaging
			WHERE tenant_id = $1 AND upload_batch_id = $2`, tenantID, req.BatchID); derr != nil {
			api.LogError("failed to clear staged batch %s: %v", req.BatchID, derr)
		}

		api.LogInfo("statement import: %d inserted, %d duplicates (tenant %s, account %s)",
			result.Imported, result.Duplicates, tenantID, accountID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"account_id": accountID,
			"imported":   result.Imported,
			"duplicates": result.Duplicates,
			"errors":     result.Errors,
		})
	}
}

// ListTransactionsHandler returns an account's transactions, newest first.
// Filters: unmatched=true limits to rows available for matching (unmatched
// and not ignored); ignored=true returns only ignored rows.
func ListTransactionsHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:view", "transaction") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrAccountRequired)
			return
		}

		pg, perr := utils.ExtractPagination(r)
		if perr != nil {
			api.RespondWithError(w, http.StatusBadRequest, perr.Error())
			return
		}

		filter := ``
		switch {
		case r.URL.Query().Get("unmatched") == "true":
			filter = ` AND t.ignored = false
			AND NOT EXISTS (SELECT 1 FROM reconmatch m WHERE m.transaction_id = t.transaction_id)`
		case r.URL.Query().Get("ignored") == "true":
			filter = ` AND t.ignored = true`
		}

		total, cerr := utils.CountTotal(ctx, pool, `
			SELECT COUNT(*) FROM reconbanktransaction t
			WHERE t.tenant_id = $1 AND t.account_id = $2`+filter, tenantID, accountID)
		if cerr != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		pg.SetPaginationStats(total)

		query := `
			SELECT t.transaction_id, t.account_id, t.txn_date, t.description, t.amount::text,
			       t.direction, t.reference, COALESCE(t.category, ''), t.ignored,
			       EXISTS (SELECT 1 FROM reconmatch m WHERE m.transaction_id = t.transaction_id) AS matched,
			       COALESCE(t.import_batch_id::text, ''), t.created_at
			FROM reconbanktransaction t
			WHERE t.tenant_id = $1 AND t.account_id = $2` + filter + `
			ORDER BY t.txn_date DESC, t.created_at DESC
			LIMIT $3 OFFSET $4`

		rows, err := pool.Query(ctx, query, tenantID, accountID, pg.Limit, pg.Offset)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		defer rows.Close()

		out := []BankTransaction{}
		for rows.Next() {
			var t BankTransaction
			var amountText string
			if err := rows.Scan(&t.TransactionID, &t.AccountID, &t.Date, &t.Description, &amountText,
				&t.Direction, &t.Reference, &t.Category, &t.Ignored, &t.Matched,
				&t.ImportBatchID, &t.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			amount, aerr := decimal.NewFromString(amountText)
			if aerr != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			t.Amount = amount
			out = append(out, t)
		}
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"rows":       out,
			"pagination": pg,
		})
	}
}

// SetIgnoredHandler flags a transaction out of (or back into) matching.
// A transaction with a committed match cannot be ignored.
func SetIgnoredHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:edit", "transaction") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID        string `json:"user_id"`
			TransactionID string `json:"transaction_id"`
			Ignored       bool   `json:"ignored"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		if req.Ignored {
			var matched bool
			err := pool.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM reconmatch WHERE tenant_id = $1 AND transaction_id = $2)`,
				tenantID, req.TransactionID).Scan(&matched)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
				return
			}
			if matched {
				api.RespondWithReconError(w, reconerr.Conflict(constants.ErrTransactionMatched))
				return
			}
		}

		tag, err := pool.Exec(ctx, `
			UPDATE reconbanktransaction SET ignored = $3
			WHERE tenant_id = $1 AND transaction_id = $2`,
			tenantID, req.TransactionID, req.Ignored)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrTransactionNotFound))
			return
		}
		api.RespondWithResult(w, true, "")
	}
}

// UpdateCategoryHandler sets or clears the free-form category label.
func UpdateCategoryHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:edit", "transaction") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID        string `json:"user_id"`
			TransactionID string `json:"transaction_id"`
			Category      string `json:"category"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		tag, err := pool.Exec(ctx, `
			UPDATE reconbanktransaction SET category = NULLIF($3, '')
			WHERE tenant_id = $1 AND transaction_id = $2`,
			tenantID, req.TransactionID, req.Category)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrTransactionNotFound))
			return
		}
		api.RespondWithResult(w, true, "")
	}
}

// DeleteTransactionHandler removes an unmatched transaction and reverses its
// contribution to the account's current balance. Matched transactions must be
// unmatched first.
func DeleteTransactionHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:edit", "transaction") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID        string `json:"user_id"`
			TransactionID string `json:"transaction_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionFailed)
			return
		}
		defer tx.Rollback(ctx)

		var accountID, amountText, direction string
		var matched bool
		err = tx.QueryRow(ctx, `
			SELECT t.account_id, t.amount::text, t.direction,
			       EXISTS (SELECT 1 FROM reconmatch m WHERE m.transaction_id = t.transaction_id)
			FROM reconbanktransaction t
			WHERE t.tenant_id = $1 AND t.transaction_id = $2
			FOR UPDATE OF t`, tenantID, req.TransactionID).
			Scan(&accountID, &amountText, &direction, &matched)
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrTransactionNotFound))
			return
		}
		if matched {
			api.RespondWithReconError(w, reconerr.Conflict(constants.ErrTransactionMatched))
			return
		}

		amount, aerr := decimal.NewFromString(amountText)
		if aerr != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
			return
		}
		signed := amount
		if direction == constants.DirectionDebit {
			signed = signed.Neg()
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM reconbanktransaction
			WHERE tenant_id = $1 AND transaction_id = $2`, tenantID, req.TransactionID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if _, err := tx.Exec(ctx, `
			UPDATE reconbankaccount
			SET current_balance = current_balance - $3
			WHERE tenant_id = $1 AND account_id = $2`,
			tenantID, accountID, signed.String()); err != nil {
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
