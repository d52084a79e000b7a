package statement

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

// StageRows copies a parsed preview batch into the staging table so the
// confirm step can import exactly what the operator saw.
func StageRows(ctx context.Context, pool *pgxpool.Pool, tenantID, accountID, batchID string, rows []RawTransaction) error {
	copyRows := make([][]interface{}, len(rows))
	for i, row := range rows {
		copyRows[i] = []interface{}{
			batchID, tenantID, accountID, i + 1,
			row.Date, row.Description, row.Amount.String(), row.Direction, row.Reference,
		}
	}
	_, err := pool.CopyFrom(
		ctx,
		pgx.Identifier{"reconstatementstaging"},
		[]string{"upload_batch_id", "tenant_id", "account_id", "row_num", "txn_date", "description", "amount", "direction", "reference"},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return reconerr.Internal(constants.ErrQueryFailed, err)
	}
	return nil
}

// LoadStagedRows returns a staged batch in row order, tenant-scoped.
func LoadStagedRows(ctx context.Context, pool *pgxpool.Pool, tenantID, batchID string) (string, []RawTransaction, error) {
	rows, err := pool.Query(ctx, `
		SELECT account_id, txn_date, description, amount::text, direction, reference
		FROM reconstatementstaging
		WHERE tenant_id = $1 AND upload_batch_id = $2
		ORDER BY row_num`, tenantID, batchID)
	if err != nil {
		return "", nil, reconerr.Internal(constants.ErrQueryFailed, err)
	}
	defer rows.Close()

	var accountID string
	var out []RawTransaction
	for rows.Next() {
		var t RawTransaction
		var amountText string
		if err := rows.Scan(&accountID, &t.Date, &t.Description, &amountText, &t.Direction, &t.Reference); err != nil {
			return "", nil, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return "", nil, reconerr.Internal(constants.ErrDatabaseScanFailed, err)
		}
		t.Amount = amount
		out = append(out, t)
	}
	if len(out) == 0 {
		return "", nil, reconerr.NotFound(constants.ErrBatchNotFound)
	}
	return accountID, out, nil
}

// PurgeStaleBatches deletes staged rows older than the retention window.
// Called by the cron service.
func PurgeStaleBatches(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	tag, err := pool.Exec(ctx, fmt.Sprintf(
		`DELETE FROM reconstatementstaging WHERE uploaded_at < now() - interval '%d days'`, retentionDays))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
