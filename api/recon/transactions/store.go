// Package transactions persists bank-reported movements and guards their
// lifecycle: idempotent import with duplicate suppression, the ignored flag,
// and deletion only while unmatched.
package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
	"LedgerCorpSuite/api/recon/statement"
	"LedgerCorpSuite/internal/textnorm"
)

// BankTransaction is one imported statement movement. Immutable after import
// except for category, the ignored flag, and match linkage.
type BankTransaction struct {
	TransactionID string          `json:"transaction_id"`
	TenantID      string          `json:"-"`
	AccountID     string          `json:"account_id"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	Reference     string          `json:"reference"`
	Category      string          `json:"category,omitempty"`
	Ignored       bool            `json:"ignored"`
	Matched       bool            `json:"matched"`
	ImportBatchID string          `json:"import_batch_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Signed returns the amount with credit positive and debit negative.
func (t BankTransaction) Signed() decimal.Decimal {
	if t.Direction == constants.DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ImportResult reports exact counts so the operator can decide whether to
// proceed or fix and retry.
type ImportResult struct {
	Imported   int                  `json:"imported"`
	Duplicates int                  `json:"duplicates"`
	Errors     []statement.RowError `json:"errors"`
}

// descMatchThreshold is how close two normalized narrations must be for a
// same-key row to count as a duplicate when references differ.
const descMatchThreshold = 0.9

// DedupIndex answers "is this row already on the account" for one import
// batch. A row is a duplicate of an existing transaction with the same
// (date, amount, direction) when the references match, or when the
// normalized descriptions are near-identical.
type DedupIndex struct {
	byKey map[string][]dedupEntry
}

type dedupEntry struct {
	reference   string
	description string
}

func dedupKey(date time.Time, amount decimal.Decimal, direction string) string {
	return date.Format("2006-01-02") + "|" + amount.String() + "|" + direction
}

// NewDedupIndex builds the index from the account's existing transactions.
func NewDedupIndex(existing []BankTransaction) *DedupIndex {
	idx := &DedupIndex{byKey: make(map[string][]dedupEntry)}
	for _, t := range existing {
		idx.add(t.Date, t.Amount, t.Direction, t.Reference, t.Description)
	}
	return idx
}

func (d *DedupIndex) add(date time.Time, amount decimal.Decimal, direction, reference, description string) {
	key := dedupKey(date, amount, direction)
	d.byKey[key] = append(d.byKey[key], dedupEntry{
		reference:   textnorm.Normalize(reference),
		description: description,
	})
}

// IsDuplicate reports whether the row collides with an indexed transaction.
// Either leg of the disjunction suffices: matching references, or
// near-identical descriptions even when the references disagree.
func (d *DedupIndex) IsDuplicate(row statement.RawTransaction) bool {
	key := dedupKey(row.Date, row.Amount, row.Direction)
	ref := textnorm.Normalize(row.Reference)
	for _, e := range d.byKey[key] {
		if ref != "" && e.reference != "" && ref == e.reference {
			return true
		}
		if textnorm.Similarity(row.Description, e.description) >= descMatchThreshold {
			return true
		}
	}
	return false
}

// Observe records an accepted row so later rows in the same batch dedup
// against it too.
func (d *DedupIndex) Observe(row statement.RawTransaction) {
	d.add(row.Date, row.Amount, row.Direction, row.Reference, row.Description)
}

// ImportRows commits accepted statement rows for one account. Duplicates are
// counted and skipped, never errored. The inserts and the account's
// current_balance update share one transaction.
func ImportRows(ctx context.Context, pool *pgxpool.Pool, tenantID, accountID, userID string, rows []statement.RawTransaction) (ImportResult, error) {
	result := ImportResult{Errors: []statement.RowError{}}
	if len(rows) == 0 {
		return result, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return result, reconerr.Internal(constants.ErrTransactionFailed, err)
	}
	defer tx.Rollback(ctx)

	// Lock the account row: the balance update below must not race other
	// imports or approvals.
	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT true FROM reconbankaccount
		WHERE tenant_id = $1 AND account_id = $2
		FOR UPDATE`, tenantID, accountID).Scan(&exists)
	if err != nil {
		return result, reconerr.NotFound(constants.ErrAccountNotFound)
	}

	existing, err := loadForDedup(ctx, tx, tenantID, accountID, rows)
	if err != nil {
		return result, err
	}
	idx := NewDedupIndex(existing)

	batchID := uuid.New().String()
	delta := decimal.Zero
	for _, row := range rows {
		if idx.IsDuplicate(row) {
			result.Duplicates++
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO reconbanktransaction
				(transaction_id, tenant_id, account_id, txn_date, description, amount, direction, reference, ignored, import_batch_id, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10)`,
			uuid.New().String(), tenantID, accountID, row.Date, row.Description,
			row.Amount.String(), row.Direction, row.Reference, batchID, userID)
		if err != nil {
			return result, reconerr.Internal(constants.ErrQueryFailed, err)
		}
		idx.Observe(row)
		delta = delta.Add(row.Signed())
		result.Imported++
	}

	if !delta.IsZero() {
		_, err = tx.Exec(ctx, `
			UPDATE reconbankaccount
			SET current_balance = current_balance + $3
			WHERE tenant_id = $1 AND account_id = $2`,
			tenantID, accountID, delta.String())
		if err != nil {
			return result, reconerr.Internal(constants.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, reconerr.Internal(constants.ErrTransactionCommitFailed, err)
	}
	return result, nil
}

// loadForDedup pulls the account's transactions inside the batch's date
// range so the index only carries rows that could possibly collide.
func loadForDedup(ctx context.Context, tx pgx.Tx, tenantID, accountID string, batch []statement.RawTransaction) ([]BankTransaction, error) {
	minDate, maxDate := batch[0].Date, batch[0].Date
	for _, row := range batch[1:] {
		if row.Date.Before(minDate) {
			minDate = row.Date
		}
		if row.Date.After(maxDate) {
			maxDate = row.Date
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT txn_date, description, amount::text, direction, reference
		FROM reconbanktransaction
		WHERE tenant_id = $1 AND account_id = $2
		  AND txn_date BETWEEN $3 AND $4`,
		tenantID, accountID, minDate, maxDate)
	if err != nil {
		return nil, reconerr.Internal(constants.ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []BankTransaction
	for rows.Next() {
		var t BankTransaction
		var amountText string
		if err := rows.Scan(&t.Date, &t.Description, &amountText, &t.Direction, &t.Reference); err != nil {
			return nil, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		t.Amount = amount
		out = append(out, t)
	}
	return out, nil
}
