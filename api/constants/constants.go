package constants

const (
	ContentTypeText      = "Content-Type"
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"

	KeyUserID    = "user_id"
	ValueSuccess = "success"
	ValueError   = "error"
)

// MaxUploadBytes caps the in-memory portion of multipart statement uploads.
// The middleware and the preview handler must agree on it: whichever parses
// the form first wins, so a mismatch would silently shrink the limit.
const MaxUploadBytes = 100 << 20

// Statement file formats accepted by the parser registry.
const (
	FormatDelimited   = "csv"
	FormatInterchange = "ofx"
	FormatXLSX        = "xlsx"
	FormatXLS         = "xls"
)

// Reconciliation statuses.
const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
	StatusApproved  = "approved"
)

// Match types.
const (
	MatchExact  = "exact"
	MatchFuzzy  = "fuzzy"
	MatchManual = "manual"
)

// Transaction directions.
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Matchable kinds exposed by the payment/expense providers.
const (
	MatchablePayment = "payment"
	MatchableExpense = "expense"
)
