// Package accounts manages the bank accounts that statements reconcile
// against.
package accounts

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	api "LedgerCorpSuite/api"
	"LedgerCorpSuite/api/auth"
	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

type BankAccount struct {
	AccountID         string          `json:"account_id"`
	Name              string          `json:"name"`
	BankName          string          `json:"bank_name"`
	AccountNumber     string          `json:"account_number"`
	Currency          string          `json:"currency"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	ReconciledBalance decimal.Decimal `json:"reconciled_balance"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CreateAccountHandler registers a bank account. Both balances start at the
// supplied opening balance; imports move current_balance, approvals move
// reconciled_balance.
func CreateAccountHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:create", "account") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID         string `json:"user_id"`
			Name           string `json:"name"`
			BankName       string `json:"bank_name"`
			AccountNumber  string `json:"account_number"`
			Currency       string `json:"currency"`
			OpeningBalance string `json:"opening_balance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.Name == "" || req.Currency == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		opening := decimal.Zero
		if req.OpeningBalance != "" {
			var err error
			if opening, err = decimal.NewFromString(req.OpeningBalance); err != nil {
				api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
				return
			}
		}

		accountID := uuid.New().String()
		_, err := pool.Exec(ctx, `
			INSERT INTO reconbankaccount
				(account_id, tenant_id, name, bank_name, account_number, currency,
				 current_balance, reconciled_balance, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)`,
			accountID, tenantID, req.Name, req.BankName, req.AccountNumber,
			req.Currency, opening.String(), userID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}

		api.LogInfo("bank account %s created (tenant %s)", accountID, tenantID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"account_id": accountID,
		})
	}
}

// ListAccountsHandler returns the tenant's bank accounts.
func ListAccountsHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:view", "account") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		rows, err := pool.Query(ctx, `
			SELECT account_id, name, COALESCE(bank_name, ''), COALESCE(account_number, ''),
			       currency, current_balance::text, reconciled_balance::text, created_at
			FROM reconbankaccount
			WHERE tenant_id = $1
			ORDER BY name`, tenantID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		defer rows.Close()

		out := []BankAccount{}
		for rows.Next() {
			var a BankAccount
			var currentText, reconciledText string
			if err := rows.Scan(&a.AccountID, &a.Name, &a.BankName, &a.AccountNumber,
				&a.Currency, &currentText, &reconciledText, &a.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			var derr error
			if a.CurrentBalance, derr = decimal.NewFromString(currentText); derr != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			if a.ReconciledBalance, derr = decimal.NewFromString(reconciledText); derr != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			out = append(out, a)
		}
		api.RespondWithPayload(w, true, "", out)
	}
}

// GetAccountHandler returns one account by id.
func GetAccountHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:view", "account") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrAccountRequired)
			return
		}

		var a BankAccount
		var currentText, reconciledText string
		err := pool.QueryRow(ctx, `
			SELECT account_id, name, COALESCE(bank_name, ''), COALESCE(account_number, ''),
			       currency, current_balance::text, reconciled_balance::text, created_at
			FROM reconbankaccount
			WHERE tenant_id = $1 AND account_id = $2`, tenantID, accountID).
			Scan(&a.AccountID, &a.Name, &a.BankName, &a.AccountNumber,
				&a.Currency, &currentText, &reconciledText, &a.CreatedAt)
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrAccountNotFound))
			return
		}
		var derr error
		if a.CurrentBalance, derr = decimal.NewFromString(currentText); derr != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
			return
		}
		if a.ReconciledBalance, derr = decimal.NewFromString(reconciledText); derr != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
			return
		}

		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"account": a,
		})
	}
}
