package reconciliation

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateBalanced(t *testing.T) {
	// Statement 10,000 against 9,800 of matched activity plus a 200
	// adjustment reconciles to zero.
	got := Calculate(dec("0"), dec("10000"),
		[]decimal.Decimal{dec("5000"), dec("4800")},
		[]decimal.Decimal{dec("200")})

	assert.Equal(t, 2, got.MatchedCount)
	assert.Equal(t, "9800", got.MatchedAmount.String())
	assert.Equal(t, "200", got.AdjustmentTotal.String())
	assert.Equal(t, "10000", got.SystemBalance.String())
	assert.True(t, got.Difference.IsZero())
}

func TestCalculateWithOpeningBalanceAndDebits(t *testing.T) {
	got := Calculate(dec("1000"), dec("850"),
		[]decimal.Decimal{dec("-150")},
		nil)

	assert.Equal(t, "850", got.SystemBalance.String())
	assert.True(t, got.Difference.IsZero())
}

func TestCalculateNonzeroDifference(t *testing.T) {
	got := Calculate(dec("0"), dec("10000"),
		[]decimal.Decimal{dec("9800")},
		nil)

	assert.Equal(t, "200", got.Difference.String())
	assert.False(t, got.Difference.IsZero())
}

func TestCalculateEmptySession(t *testing.T) {
	got := Calculate(dec("500"), dec("500"), nil, nil)
	assert.Equal(t, 0, got.MatchedCount)
	assert.True(t, got.Difference.IsZero())
	assert.Equal(t, "500", got.SystemBalance.String())
}

type fakeRow struct {
	vals []any
}

func (r fakeRow) Scan(dest ...any) error {
	return assignAll(r.vals, dest)
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error { return assignAll(r.rows[r.idx-1], dest) }
func (r *fakeRows) Values() ([]any, error) { return r.rows[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func assignAll(vals []any, dest []any) error {
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		}
	}
	return nil
}

// fakeStore serves canned result sets keyed on what the SQL asks for, so the
// summary math is testable without a database. Match rows are served from
// txnAmountRows when the query reads the transaction's amount column, and
// from matchAmountRows when it reads the match's own column.
type fakeStore struct {
	total           int
	txnAmountRows   [][]any
	matchAmountRows [][]any
	adjustmentRows  [][]any
	draftExists     bool
}

func (f *fakeStore) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if strings.Contains(sql, "COUNT(*)") {
		return fakeRow{vals: []any{f.total}}
	}
	return fakeRow{vals: []any{f.draftExists}}
}

func (f *fakeStore) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	if strings.Contains(sql, "reconmatch") {
		if strings.Contains(sql, "t.amount") {
			return &fakeRows{rows: f.txnAmountRows}, nil
		}
		return &fakeRows{rows: f.matchAmountRows}, nil
	}
	return &fakeRows{rows: f.adjustmentRows}, nil
}

func TestLoadSummaryUsesTransactionAmountForPartialMatches(t *testing.T) {
	// A 100 partial match against a 150 debit still explains the full 150
	// bank movement, so the summary must read the transaction's amount.
	// Reading the match amount instead would leave a 50 phantom difference.
	store := &fakeStore{
		total:           1,
		txnAmountRows:   [][]any{{"150", constants.DirectionDebit}},
		matchAmountRows: [][]any{{"100", constants.DirectionDebit}},
	}
	s := Session{
		ReconciliationID: "r1",
		AccountID:        "a1",
		OpeningBalance:   dec("1000"),
		StatementBalance: dec("850"),
	}

	got, err := loadSummary(context.Background(), store, "tenant-1", s)

	assert.NoError(t, err)
	assert.Equal(t, 1, got.TotalTransactions)
	assert.Equal(t, 1, got.MatchedCount)
	assert.Equal(t, "-150", got.MatchedAmount.String())
	assert.Equal(t, "850", got.SystemBalance.String())
	assert.True(t, got.Difference.IsZero())
}

func TestLoadSummarySignsCreditsAndDebits(t *testing.T) {
	store := &fakeStore{
		total: 2,
		txnAmountRows: [][]any{
			{"200", constants.DirectionCredit},
			{"50", constants.DirectionDebit},
		},
		adjustmentRows: [][]any{{"-25"}},
	}
	s := Session{
		OpeningBalance:   dec("100"),
		StatementBalance: dec("225"),
	}

	got, err := loadSummary(context.Background(), store, "tenant-1", s)

	assert.NoError(t, err)
	assert.Equal(t, "150", got.MatchedAmount.String())
	assert.Equal(t, "-25", got.AdjustmentTotal.String())
	assert.Equal(t, "225", got.SystemBalance.String())
	assert.True(t, got.Difference.IsZero())
}

func TestEnsureNoOpenDraft(t *testing.T) {
	assert.NoError(t, ensureNoOpenDraft(context.Background(), &fakeStore{}, "tenant-1", "a1"))

	err := ensureNoOpenDraft(context.Background(), &fakeStore{draftExists: true}, "tenant-1", "a1")
	assert.True(t, reconerr.IsKind(err, reconerr.KindConflict))
	assert.EqualError(t, err, constants.ErrDraftExists)
}
