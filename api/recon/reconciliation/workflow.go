package reconciliation

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	api "LedgerCorpSuite/api"
	"LedgerCorpSuite/api/auth"
	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
	"LedgerCorpSuite/internal/logger"
)

// transitions is the whole state machine: draft completes, completed
// approves or reopens, approved is terminal.
var transitions = map[string][]string{
	constants.StatusDraft:     {constants.StatusCompleted},
	constants.StatusCompleted: {constants.StatusApproved, constants.StatusDraft},
	constants.StatusApproved:  {},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// completionGate blocks completion while the statement and system balances
// differ. The nonzero difference travels in the error message so the operator
// sees how far off they are.
func completionGate(summary Summary) error {
	if !summary.Difference.IsZero() {
		return reconerr.Validation(
			constants.FormatError(constants.ErrDifferenceNotZero, summary.Difference.String()))
	}
	return nil
}

func auditTransition(reconciliationID, from, to, userID, tenantID string) {
	msg := fmt.Sprintf("reconciliation %s: %s -> %s by %s (tenant %s)", reconciliationID, from, to, userID, tenantID)
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(msg)
	} else {
		api.LogInfo(msg)
	}
}

// CompleteReconciliationHandler moves a draft to completed. Completion is
// blocked while the statement and system balances differ: the operator must
// zero the difference with matches or adjustments first.
func CompleteReconciliationHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:complete", "reconciliation") {
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

		s, serr := lockSession(ctx, tx, tenantID, req.ReconciliationID)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}
		if !CanTransition(s.Status, constants.StatusCompleted) {
			api.RespondWithReconError(w, reconerr.InvalidState(constants.ErrNotDraft))
			return
		}

		summary, sumErr := loadSummary(ctx, tx, tenantID, s)
		if sumErr != nil {
			api.RespondWithReconError(w, sumErr)
			return
		}
		if gerr := completionGate(summary); gerr != nil {
			api.RespondWithReconError(w, gerr)
			return
		}

		if _, err := tx.Exec(ctx, `
			UPDATE reconciliation
			SET status = $3, completed_by = $4, completed_at = now()
			WHERE tenant_id = $1 AND reconciliation_id = $2`,
			tenantID, req.ReconciliationID, constants.StatusCompleted, userID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}

		auditTransition(req.ReconciliationID, s.Status, constants.StatusCompleted, userID, tenantID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"status":  constants.StatusCompleted,
		})
	}
}

// ApproveReconciliationHandler finalizes a completed session and propagates
// the system ending balance to the account's reconciled balance in the same
// transaction.
func ApproveReconciliationHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:approve", "reconciliation") {
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

		s, serr := lockSession(ctx, tx, tenantID, req.ReconciliationID)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}
		if !CanTransition(s.Status, constants.StatusApproved) {
			api.RespondWithReconError(w, reconerr.InvalidState(constants.ErrNotCompleted))
			return
		}

		summary, sumErr := loadSummary(ctx, tx, tenantID, s)
		if sumErr != nil {
			api.RespondWithReconError(w, sumErr)
			return
		}

		if _, err := tx.Exec(ctx, `
			UPDATE reconciliation
			SET status = $3, approved_by = $4, approved_at = now()
			WHERE tenant_id = $1 AND reconciliation_id = $2`,
			tenantID, req.ReconciliationID, constants.StatusApproved, userID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if _, err := tx.Exec(ctx, `
			UPDATE reconbankaccount
			SET reconciled_balance = $3
			WHERE tenant_id = $1 AND account_id = $2`,
			tenantID, s.AccountID, summary.SystemBalance.String()); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}

		auditTransition(req.ReconciliationID, s.Status, constants.StatusApproved, userID, tenantID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":            true,
			"status":             constants.StatusApproved,
			"reconciled_balance": summary.SystemBalance.String(),
		})
	}
}

// ReopenReconciliationHandler moves a completed session back to draft.
// Approved sessions are final and reopening them is an explicit invalid-state
// error, never a silent no-op.
func ReopenReconciliationHandler(pool *pgxpool.Pool, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:complete", "reconciliation") {
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

		s, serr := lockSession(ctx, tx, tenantID, req.ReconciliationID)
		if serr != nil {
			api.RespondWithReconError(w, serr)
			return
		}
		if s.Status == constants.StatusApproved {
			api.RespondWithReconError(w, reconerr.InvalidState(constants.ErrApprovedFinal))
			return
		}
		if !CanTransition(s.Status, constants.StatusDraft) {
			api.RespondWithReconError(w, reconerr.InvalidState(constants.ErrNotCompleted))
			return
		}

		if _, err := tx.Exec(ctx, `
			UPDATE reconciliation
			SET status = $3, completed_by = NULL, completed_at = NULL
			WHERE tenant_id = $1 AND reconciliation_id = $2`,
			tenantID, req.ReconciliationID, constants.StatusDraft); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTransactionCommitFailed)
			return
		}

		auditTransition(req.ReconciliationID, s.Status, constants.StatusDraft, userID, tenantID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"status":  constants.StatusDraft,
		})
	}
}
