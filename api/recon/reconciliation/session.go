// Package reconciliation owns the period-scoped session: balance math,
// manual adjustments, and the draft/completed/approved state machine.
package reconciliation

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
)

// Session is one reconciliation of one account over one statement period.
type Session struct {
	ReconciliationID string          `json:"reconciliation_id"`
	AccountID        string          `json:"account_id"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	StatementBalance decimal.Decimal `json:"statement_balance"`
	Status           string          `json:"status"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedBy      string          `json:"completed_by,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ApprovedBy       string          `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
}

// Adjustment is a manual delta with no corresponding bank transaction,
// covering timing differences like outstanding checks.
type Adjustment struct {
	AdjustmentID string          `json:"adjustment_id"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Summary is the read-only balance picture of a session.
type Summary struct {
	TotalTransactions int             `json:"total_transactions"`
	MatchedCount      int             `json:"matched_count"`
	MatchedAmount     decimal.Decimal `json:"matched_amount"`
	AdjustmentTotal   decimal.Decimal `json:"adjustment_total"`
	BankBalance       decimal.Decimal `json:"bank_balance"`
	SystemBalance     decimal.Decimal `json:"system_balance"`
	Difference        decimal.Decimal `json:"difference"`
}

// Calculate derives the session's balance picture. System balance is the
// opening balance plus the signed amounts of matched transactions plus
// adjustments; ignored and unmatched transactions contribute nothing.
// Difference is statement minus system, so zero means reconciled.
func Calculate(openingBalance, statementBalance decimal.Decimal, matchedSigned, adjustments []decimal.Decimal) Summary {
	matched := decimal.Zero
	for _, a := range matchedSigned {
		matched = matched.Add(a)
	}
	adjTotal := decimal.Zero
	for _, a := range adjustments {
		adjTotal = adjTotal.Add(a)
	}
	system := openingBalance.Add(matched).Add(adjTotal)
	return Summary{
		MatchedCount:    len(matchedSigned),
		MatchedAmount:   matched,
		AdjustmentTotal: adjTotal,
		BankBalance:     statementBalance,
		SystemBalance:   system,
		Difference:      statementBalance.Sub(system),
	}
}

func scanDecimal(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
	}
	return d, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// loadSummary computes the session's Summary from the store. Matched amounts
// are signed by the underlying transaction's direction.
func loadSummary(ctx context.Context, q querier, tenantID string, s Session) (Summary, error) {
	var total int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM reconbanktransaction
		WHERE tenant_id = $1 AND account_id = $2
		  AND txn_date BETWEEN $3 AND $4 AND ignored = false`,
		tenantID, s.AccountID, s.StartDate, s.EndDate).Scan(&total)
	if err != nil {
		return Summary{}, reconerr.Internal(constants.ErrQueryFailed, err)
	}

	// The balance uses the transaction's full amount, not the match amount:
	// a partially settled match still removes the whole bank movement from
	// the unexplained difference. One row per matched transaction.
	rows, err := q.Query(ctx, `
		SELECT t.amount::text, t.direction
		FROM reconmatch m
		JOIN reconbanktransaction t ON t.transaction_id = m.transaction_id AND t.tenant_id = m.tenant_id
		WHERE m.tenant_id = $1 AND m.reconciliation_id = $2`,
		tenantID, s.ReconciliationID)
	if err != nil {
		return Summary{}, reconerr.Internal(constants.ErrQueryFailed, err)
	}
	var matchedSigned []decimal.Decimal
	for rows.Next() {
		var amountText, direction string
		if err := rows.Scan(&amountText, &direction); err != nil {
			rows.Close()
			return Summary{}, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		amount, derr := scanDecimal(amountText)
		if derr != nil {
			rows.Close()
			return Summary{}, derr
		}
		if direction == constants.DirectionDebit {
			amount = amount.Neg()
		}
		matchedSigned = append(matchedSigned, amount)
	}
	rows.Close()

	rows, err = q.Query(ctx, `
		SELECT amount::text
		FROM reconadjustment
		WHERE tenant_id = $1 AND reconciliation_id = $2`,
		tenantID, s.ReconciliationID)
	if err != nil {
		return Summary{}, reconerr.Internal(constants.ErrQueryFailed, err)
	}
	var adjustments []decimal.Decimal
	for rows.Next() {
		var amountText string
		if err := rows.Scan(&amountText); err != nil {
			rows.Close()
			return Summary{}, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		amount, derr := scanDecimal(amountText)
		if derr != nil {
			rows.Close()
			return Summary{}, derr
		}
		adjustments = append(adjustments, amount)
	}
	rows.Close()

	summary := Calculate(s.OpeningBalance, s.StatementBalance, matchedSigned, adjustments)
	summary.TotalTransactions = total
	return summary, nil
}

const sessionColumns = `reconciliation_id, account_id, start_date, end_date,
	opening_balance::text, statement_balance::text, status,
	created_by, created_at, COALESCE(completed_by, ''), completed_at,
	COALESCE(approved_by, ''), approved_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	var openingText, statementText string
	err := row.Scan(&s.ReconciliationID, &s.AccountID, &s.StartDate, &s.EndDate,
		&openingText, &statementText, &s.Status,
		&s.CreatedBy, &s.CreatedAt, &s.CompletedBy, &s.CompletedAt,
		&s.ApprovedBy, &s.ApprovedAt)
	if err != nil {
		return Session{}, err
	}
	if s.OpeningBalance, err = scanDecimal(openingText); err != nil {
		return Session{}, err
	}
	if s.StatementBalance, err = scanDecimal(statementText); err != nil {
		return Session{}, err
	}
	return s, nil
}

// ensureNoOpenDraft enforces the one-draft-per-account rule: a second create
// conflicts until the open draft completes or approves.
func ensureNoOpenDraft(ctx context.Context, q querier, tenantID, accountID string) error {
	var draftExists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reconciliation
			WHERE tenant_id = $1 AND account_id = $2 AND status = $3
		)`, tenantID, accountID, constants.StatusDraft).Scan(&draftExists)
	if err != nil {
		return reconerr.Internal(constants.ErrQueryFailed, err)
	}
	if draftExists {
		return reconerr.Conflict(constants.ErrDraftExists)
	}
	return nil
}

// lockSession loads the session under FOR UPDATE so state-mutating operations
// on the same session serialize.
func lockSession(ctx context.Context, tx pgx.Tx, tenantID, reconciliationID string) (Session, error) {
	s, err := scanSession(tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM reconciliation
		WHERE tenant_id = $1 AND reconciliation_id = $2
		FOR UPDATE`, tenantID, reconciliationID))
	if err != nil {
		return Session{}, reconerr.NotFound(constants.ErrReconciliationNotFound)
	}
	return s, nil
}

// CreateReconciliationHandler opens a draft session for an account and
// period. One draft per account: a second create conflicts until the first
// is completed or approved. The opening balance defaults to the account's
// last reconciled balance.
func CreateReconciliationHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:create", "reconciliation") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID           string `json:"user_id"`
			AccountID        string `json:"account_id"`
			StartDate        string `json:"start_date"`
			EndDate          string `json:"end_date"`
			StatementBalance string `json:"statement_balance"`
			OpeningBalance   string `json:"opening_balance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.AccountID == "" || req.StartDate == "" || req.EndDate == "" || req.StatementBalance == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}
		endDate, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}
		if endDate.Before(startDate) {
			api.RespondWithReconError(w, reconerr.Validation(constants.ErrInvalidDateRange))
			return
		}
		statementBalance, err := decimal.NewFromString(req.StatementBalance)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionFailed)
			return
		}
		defer tx.Rollback(ctx)

		// Account lock serializes concurrent creates for the same account.
		var reconciledText string
		err = tx.QueryRow(ctx, `
			SELECT reconciled_balance::text FROM reconbankaccount
			WHERE tenant_id = $1 AND account_id = $2
			FOR UPDATE`, tenantID, req.AccountID).Scan(&reconciledText)
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrAccountNotFound))
			return
		}

		openingBalance, derr := scanDecimal(reconciledText)
		if derr != nil {
			api.RespondWithReconError(w, derr)
			return
		}
		if req.OpeningBalance != "" {
			if openingBalance, err = decimal.NewFromString(req.OpeningBalance); err != nil {
				api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
				return
			}
		}

		if derr := ensureNoOpenDraft(ctx, tx, tenantID, req.AccountID); derr != nil {
			api.RespondWithReconError(w, derr)
			return
		}

		reconciliationID := uuid.New().String()
		if _, err := tx.Exec(ctx, `
			INSERT INTO reconciliation
				(reconciliation_id, tenant_id, account_id, start_date, end_date,
				 opening_balance, statement_balance, status, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			reconciliationID, tenantID, req.AccountID, startDate, endDate,
			openingBalance.String(), statementBalance.String(), constants.StatusDraft, userID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}

		api.LogInfo("reconciliation %s created for account %s (tenant %s)", reconciliationID, req.AccountID, tenantID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"reconciliation_id": reconciliationID,
			"status":            constants.StatusDraft,
			"opening_balance":   openingBalance.String(),
		})
	}
}

// ListReconciliationsHandler returns an account's sessions, newest first.
func ListReconciliationsHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:view", "reconciliation") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrAccountRequired)
			return
		}

		rows, err := pool.Query(ctx, `
			SELECT `+sessionColumns+`
			FROM reconciliation
			WHERE tenant_id = $1 AND account_id = $2
			ORDER BY created_at DESC`, tenantID, accountID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		defer rows.Close()

		out := []Session{}
		for rows.Next() {
			s, serr := scanSession(rows)
			if serr != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDatabaseScanFailed)
				return
			}
			out = append(out, s)
		}
		api.RespondWithPayload(w, true, "", out)
	}
}

// SummaryHandler returns the session's balance picture plus its adjustments.
// Safe to call in any state.
func SummaryHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:view", "reconciliation") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		reconciliationID := r.URL.Query().Get("reconciliation_id")
		if reconciliationID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		s, err := scanSession(pool.QueryRow(ctx, `
			SELECT `+sessionColumns+`
			FROM reconciliation
			WHERE tenant_id = $1 AND reconciliation_id = $2`, tenantID, reconciliationID))
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrReconciliationNotFound))
			return
		}

		summary, serr := loadSummary(ctx, pool, tenantID, s)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}

		adjustments, aerr := loadAdjustments(ctx, pool, tenantID, reconciliationID)
		if aerr != nil {
			api.RespondWithReconError(w, aerr)
			return
		}

		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":     true,
			"session":     s,
			"summary":     summary,
			"adjustments": adjustments,
		})
	}
}

func loadAdjustments(ctx context.Context, q querier, tenantID, reconciliationID string) ([]Adjustment, error) {
	rows, err := q.Query(ctx, `
		SELECT adjustment_id, description, amount::text, created_by, created_at
		FROM reconadjustment
		WHERE tenant_id = $1 AND reconciliation_id = $2
		ORDER BY created_at`, tenantID, reconciliationID)
	if err != nil {
		return nil, reconerr.Internal(constants.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := []Adjustment{}
	for rows.Next() {
		var a Adjustment
		var amountText string
		if err := rows.Scan(&a.AdjustmentID, &a.Description, &amountText, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		if a.Amount, err = scanDecimal(amountText); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AddAdjustmentHandler records a manual delta on a draft session. Zero
// amounts are rejected; the sign carries the direction.
func AddAdjustmentHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:edit", "reconciliation") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID           string `json:"user_id"`
			ReconciliationID string `json:"reconciliation_id"`
			Description      string `json:"description"`
			Amount           string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.ReconciliationID == "" || req.Amount == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}
		if amount.IsZero() {
			api.RespondWithReconError(w, reconerr.Validation(constants.ErrZeroAdjustment))
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionFailed)
			return
		}
		defer tx.Rollback(ctx)

		s, serr := lockSession(ctx, tx, tenantID, req.ReconciliationID)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}
		if s.Status != constants.StatusDraft {
			api.RespondWithReconError(w, reconerr.InvalidState(constants.ErrNotDraft))
			return
		}

		adjustmentID := uuid.New().String()
		if _, err := tx.Exec(ctx, `
			INSERT INTO reconadjustment
				(adjustment_id, tenant_id, reconciliation_id, description, amount, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			adjustmentID, tenantID, req.ReconciliationID, req.Description, amount.String(), userID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		// The live balance tracks adjustments the moment they land.
		if _, err := tx.Exec(ctx, `
			UPDATE reconbankaccount
			SET current_balance = current_balance + $3
			WHERE tenant_id = $1 AND account_id = $2`,
			tenantID, s.AccountID, amount.String()); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}

		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":       true,
			"adjustment_id": adjustmentID,
		})
	}
}

// RemoveAdjustmentHandler deletes an adjustment from a draft session.
func RemoveAdjustmentHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:edit", "reconciliation") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		var req struct {
			UserID           string `json:"user_id"`
			ReconciliationID string `json:"reconciliation_id"`
			AdjustmentID     string `json:"adjustment_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.ReconciliationID == "" || req.AdjustmentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequest)
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionFailed)
			return
		}
		defer tx.Rollback(ctx)

		s, serr := lockSession(ctx, tx, tenantID, req.ReconciliationID)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}
		if s.Status != constants.StatusDraft {
			api.RespondWithReconError(w, reconerr.InvalidState(constants.ErrNotDraft))
			return
		}

		var amountText string
		err = tx.QueryRow(ctx, `
			DELETE FROM reconadjustment
			WHERE tenant_id = $1 AND reconciliation_id = $2 AND adjustment_id = $3
			RETURNING amount::text`,
			tenantID, req.ReconciliationID, req.AdjustmentID).Scan(&amountText)
		if err != nil {
			api.RespondWithReconError(w, reconerr.NotFound(constants.ErrAdjustmentNotFound))
			return
		}
		amount, aerr := scanDecimal(amountText)
		if aerr != nil {
			api.RespondWithReconError(w, aerr)
			return
		}
		if _, err := tx.Exec(ctx, `
			UPDATE reconbankaccount
			SET current_balance = current_balance - $3
			WHERE tenant_id = $1 AND account_id = $2`,
			tenantID, s.AccountID, amount.String()); err != nil {
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
