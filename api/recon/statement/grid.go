package statement

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

var errAmountMissing = errors.New("no debit or credit amount present")

// columnIndexes locates the mapped columns inside a tabular statement. -1
// means the column is absent.
type columnIndexes struct {
	date, description, amount, debit, credit, txnType, reference int
}

var headerSynonyms = map[string][]string{
	"date":        {"date", "txn date", "transaction date", "tran date", "value date", "posting date"},
	"description": {"description", "narration", "details", "particulars", "remarks", "transaction details", "transaction remarks"},
	"amount":      {"amount", "transaction amount", "amt", "amount (inr)"},
	"debit":       {"debit", "withdrawal", "withdrawal amt", "withdrawal amt.", "debit amount", "dr amount"},
	"credit":      {"credit", "deposit", "deposit amt", "deposit amt.", "credit amount", "cr amount"},
	"type":        {"type", "dr/cr", "cr/dr", "dr cr", "transaction type"},
	"reference":   {"reference", "ref no", "ref no.", "reference no", "reference number", "cheque no", "chq no", "chq./ref.no.", "cheque number", "utr", "ref"},
}

func matchesSynonym(cell, key string) bool {
	for _, syn := range headerSynonyms[key] {
		if cell == syn {
			return true
		}
	}
	return false
}

// findHeader scans the leading rows for the column header line. Statements
// often carry account metadata above the table, so the header is rarely row
// zero.
func findHeader(rows [][]string) (int, columnIndexes, bool) {
	for i := 0; i < len(rows) && i < 25; i++ {
		cols := columnIndexes{date: -1, description: -1, amount: -1, debit: -1, credit: -1, txnType: -1, reference: -1}
		for j, cell := range rows[i] {
			v := normalizeCell(cell)
			switch {
			case cols.date < 0 && matchesSynonym(v, "date"):
				cols.date = j
			case cols.description < 0 && matchesSynonym(v, "description"):
				cols.description = j
			case cols.amount < 0 && matchesSynonym(v, "amount"):
				cols.amount = j
			case cols.debit < 0 && matchesSynonym(v, "debit"):
				cols.debit = j
			case cols.credit < 0 && matchesSynonym(v, "credit"):
				cols.credit = j
			case cols.txnType < 0 && matchesSynonym(v, "type"):
				cols.txnType = j
			case cols.reference < 0 && matchesSynonym(v, "reference"):
				cols.reference = j
			}
		}
		if cols.date >= 0 && (cols.amount >= 0 || cols.debit >= 0 || cols.credit >= 0) {
			return i, cols, true
		}
	}
	return 0, columnIndexes{}, false
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// mapGrid converts a [][]string table (CSV or spreadsheet) into normalized
// transactions, collecting per-row failures instead of aborting.
func mapGrid(rows [][]string) ([]RawTransaction, []RowError, error) {
	if len(rows) == 0 {
		return nil, nil, reconerr.Parse(constants.ErrEmptyFile)
	}
	headerIdx, cols, ok := findHeader(rows)
	if !ok {
		return nil, nil, reconerr.Parse(constants.ErrFileParsingFailed)
	}

	var out []RawTransaction
	var rowErrs []RowError
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		txn, err := mapRow(row, cols)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		out = append(out, txn)
	}
	return out, rowErrs, nil
}

func mapRow(row []string, cols columnIndexes) (RawTransaction, error) {
	date, err := ParseDate(cellAt(row, cols.date))
	if err != nil {
		return RawTransaction{}, err
	}

	amount, direction, err := resolveAmount(row, cols)
	if err != nil {
		return RawTransaction{}, err
	}

	return RawTransaction{
		Date:        date,
		Description: cellAt(row, cols.description),
		Amount:      amount.Abs(),
		Direction:   direction,
		Reference:   cellAt(row, cols.reference),
	}, nil
}

func resolveAmount(row []string, cols columnIndexes) (decimal.Decimal, string, error) {
	// Separate debit/credit columns take priority.
	if cols.debit >= 0 || cols.credit >= 0 {
		debitCell := cellAt(row, cols.debit)
		creditCell := cellAt(row, cols.credit)
		if debitCell != "" && debitCell != "-" {
			d, perr := ParseAmount(debitCell)
			if perr == nil && !d.IsZero() {
				return d, constants.DirectionDebit, nil
			}
		}
		if creditCell != "" && creditCell != "-" {
			c, perr := ParseAmount(creditCell)
			if perr != nil {
				return decimal.Zero, "", perr
			}
			if !c.IsZero() {
				return c, constants.DirectionCredit, nil
			}
		}
		return decimal.Zero, "", errAmountMissing
	}

	a, perr := ParseAmount(cellAt(row, cols.amount))
	if perr != nil {
		return decimal.Zero, "", perr
	}
	if cols.txnType >= 0 {
		switch t := normalizeCell(cellAt(row, cols.txnType)); t {
		case "cr", "credit", "c", "deposit":
			return a, constants.DirectionCredit, nil
		case "dr", "debit", "d", "withdrawal":
			return a, constants.DirectionDebit, nil
		}
	}
	// No usable type column: the sign decides.
	if a.IsNegative() {
		return a, constants.DirectionDebit, nil
	}
	return a, constants.DirectionCredit, nil
}
