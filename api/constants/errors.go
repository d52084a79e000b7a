package constants

import "fmt"

// ============================================================================
// AUTHENTICATION & SESSION ERRORS
// ============================================================================

const (
	ErrMissingUserID  = "user_id is required in the request"
	ErrInvalidSession = "Your session has expired or is invalid. Please login again"
	ErrUnauthorized   = "You are not authorized to perform this action"
	ErrTenantScope    = "Requested record is outside your organization"
)

// ============================================================================
// VALIDATION ERRORS - Accounts & Transactions
// ============================================================================

const (
	ErrAccountNotFound      = "Bank account not found or you don't have access to it"
	ErrAccountRequired      = "account_id is required"
	ErrTransactionNotFound  = "Bank transaction not found or you don't have access to it"
	ErrTransactionMatched   = "Transaction has a committed match and cannot be deleted"
	ErrTransactionIgnored   = "Transaction is ignored and cannot be matched"
	ErrMatchableNotFound    = "Payment/expense record not found or you don't have access to it"
	ErrMatchNotFound        = "Match not found"
	ErrCurrencyMismatch     = "Transaction and record currencies do not match"
	ErrAmountExceedsBalance = "Match amount exceeds the record's outstanding balance"
)

// ============================================================================
// VALIDATION ERRORS - Reconciliation
// ============================================================================

const (
	ErrReconciliationNotFound = "Reconciliation not found or you don't have access to it"
	ErrDraftExists            = "A draft reconciliation is already open for this account"
	ErrNotDraft               = "Reconciliation is no longer in draft"
	ErrNotCompleted           = "Reconciliation must be completed first"
	ErrApprovedFinal          = "Reconciliation is approved and cannot be reopened"
	ErrDifferenceNotZero      = "Statement and system balances differ by %s. Add adjustments or matches before completing"
	ErrInvalidDateRange       = "end_date must not be before start_date"
	ErrZeroAdjustment     = "Adjustment amount must not be zero"
	ErrAdjustmentNotFound = "Adjustment not found"
)

// ============================================================================
// FILE UPLOAD ERRORS
// ============================================================================

const (
	ErrFileUploadFailed  = "File upload failed. Please check the file format and try again"
	ErrInvalidFileFormat = "Invalid file format. Please upload a valid file"
	ErrUnsupportedFormat = "Unsupported statement format: %s"
	ErrEmptyFile         = "Uploaded file is empty"
	ErrFileParsingFailed = "Failed to parse file contents. Please check the file format"
	ErrInvalidDataRow    = "Invalid data found in row %d: %s"
	ErrBatchNotFound     = "Staged statement batch not found or expired"
)

// ============================================================================
// DATABASE OPERATION ERRORS
// ============================================================================

const (
	ErrQueryFailed             = "Database query failed. Please contact support if this persists"
	ErrTransactionFailed       = "Transaction failed. Please try again"
	ErrTransactionCommitFailed = "Failed to save changes. Please try again"
	ErrDatabaseScanFailed      = "Failed to read database results"
)

// ============================================================================
// GENERAL
// ============================================================================

const (
	ErrInternalServer = "Internal server error. Please contact support"
	ErrInvalidRequest = "Invalid request. Please check your input"
)

// FormatError formats an error message with additional context.
func FormatError(baseError string, context ...interface{}) string {
	if len(context) == 0 {
		return baseError
	}
	return fmt.Sprintf(baseError, context...)
}

// FormatRowError formats an error for a specific data row.
func FormatRowError(rowNum int, reason string) string {
	return fmt.Sprintf(ErrInvalidDataRow, rowNum, reason)
}
