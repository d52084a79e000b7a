package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
	"LedgerCorpSuite/api/recon/transactions"
	"LedgerCorpSuite/internal/config"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func txn(id string, d int, amount, reference, description string) transactions.BankTransaction {
	return transactions.BankTransaction{
		TransactionID: id,
		Date:          day(d),
		Description:   description,
		Amount:        decimal.RequireFromString(amount),
		Direction:     constants.DirectionDebit,
		Reference:     reference,
	}
}

func matchable(id string, d int, amount, reference, description string) Matchable {
	return Matchable{
		MatchableID: id,
		Kind:        constants.MatchablePayment,
		Date:        day(d),
		Description: description,
		Reference:   reference,
		Currency:    "USD",
		Amount:      decimal.RequireFromString(amount),
		Outstanding: decimal.RequireFromString(amount),
	}
}

func TestScoreCandidatesExactMatch(t *testing.T) {
	tuning := config.DefaultMatchTuning()
	tx := txn("t1", 5, "150.00", "INV-100", "VENDOR PAYMENT")
	pool := []Matchable{
		matchable("m1", 4, "150.00", "INV-100", "Invoice 100"),
		matchable("m2", 5, "150.00", "", "Invoice 100 copy"),
	}

	got := ScoreCandidates(tx, "USD", pool, tuning)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].MatchableID)
	assert.Equal(t, constants.MatchExact, got[0].MatchType)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, constants.MatchFuzzy, got[1].MatchType)
}

func TestScoreCandidatesDisqualifiers(t *testing.T) {
	tuning := config.DefaultMatchTuning()
	tx := txn("t1", 5, "150.00", "", "PAYMENT")

	eur := matchable("m1", 5, "150.00", "", "Payment")
	eur.Currency = "EUR"
	wrongAmount := matchable("m2", 5, "151.00", "", "Payment")
	tooFar := matchable("m3", 5+tuning.DateWindowDays+1, "150.00", "", "Payment")
	consumed := matchable("m4", 5, "150.00", "", "Payment")
	consumed.Outstanding = decimal.RequireFromString("50.00")

	got := ScoreCandidates(tx, "USD", []Matchable{eur, wrongAmount, tooFar, consumed}, tuning)
	assert.Empty(t, got)
}

func TestScoreCandidatesFuzzyDecay(t *testing.T) {
	tuning := config.MatchTuning{DateWindowDays: 3, ScoreMargin: 0.15, MinScore: 0.5}
	tx := txn("t1", 10, "500.00", "", "OFFICE SUPPLIES")

	sameDay := ScoreCandidates(tx, "USD", []Matchable{matchable("m1", 10, "500.00", "", "Office supplies")}, tuning)
	require.Len(t, sameDay, 1)
	assert.InDelta(t, 0.9, sameDay[0].Score, 1e-9)

	edge := ScoreCandidates(tx, "USD", []Matchable{matchable("m1", 13, "500.00", "", "Office supplies")}, tuning)
	require.Len(t, edge, 1)
	assert.InDelta(t, 0.5, edge[0].Score, 1e-9)
}

func TestPlanAutoMatchesPicksCloserDate(t *testing.T) {
	tuning := config.MatchTuning{DateWindowDays: 3, ScoreMargin: 0.15, MinScore: 0.5}
	tx := txn("t1", 10, "500.00", "", "COURIER CHARGES")
	pool := []Matchable{
		matchable("m-near", 10, "500.00", "", "Courier charges March"),
		matchable("m-far", 13, "500.00", "", "Courier charges February"),
	}

	plan := PlanAutoMatches([]transactions.BankTransaction{tx}, "USD", pool, tuning)
	require.Len(t, plan, 1)
	assert.Equal(t, "m-near", plan[0].MatchableID)
	assert.Equal(t, constants.MatchFuzzy, plan[0].MatchType)
}

func TestPlanAutoMatchesAmbiguousWithinMargin(t *testing.T) {
	tuning := config.MatchTuning{DateWindowDays: 3, ScoreMargin: 0.15, MinScore: 0.5}
	tx := txn("t1", 10, "500.00", "", "COURIER CHARGES")
	// One and two days out: scores 0.767 and 0.633, gap under the margin.
	pool := []Matchable{
		matchable("m1", 11, "500.00", "", "Courier charges A"),
		matchable("m2", 12, "500.00", "", "Courier charges B"),
	}

	plan := PlanAutoMatches([]transactions.BankTransaction{tx}, "USD", pool, tuning)
	assert.Empty(t, plan)

	// Both still surface as suggestions for manual choice.
	suggestions := ScoreCandidates(tx, "USD", pool, tuning)
	assert.Len(t, suggestions, 2)
}

func TestScoreCandidatesDescriptionTiebreak(t *testing.T) {
	tuning := config.DefaultMatchTuning()
	tx := txn("t1", 10, "500.00", "", "ACME LOGISTICS FREIGHT")
	// Same date distance, so equal scores; description affinity orders them.
	pool := []Matchable{
		matchable("m-other", 10, "500.00", "", "Stationery restock"),
		matchable("m-close", 10, "500.00", "", "Freight Acme Logistics"),
	}

	got := ScoreCandidates(tx, "USD", pool, tuning)
	require.Len(t, got, 2)
	assert.Equal(t, "m-close", got[0].MatchableID)
	assert.Equal(t, got[0].Score, got[1].Score)
}

func TestPlanAutoMatchesAmbiguousExactPair(t *testing.T) {
	tuning := config.DefaultMatchTuning()
	tx := txn("t1", 10, "500.00", "REF-1", "PAYMENT")
	pool := []Matchable{
		matchable("m1", 10, "500.00", "REF-1", "Payment a"),
		matchable("m2", 11, "500.00", "REF-1", "Payment b"),
	}

	plan := PlanAutoMatches([]transactions.BankTransaction{tx}, "USD", pool, tuning)
	assert.Empty(t, plan)
}

func TestPlanAutoMatchesConsumesMatchable(t *testing.T) {
	tuning := config.DefaultMatchTuning()
	txns := []transactions.BankTransaction{
		txn("t1", 10, "500.00", "", "RENT MARCH"),
		txn("t2", 10, "500.00", "", "RENT MARCH AGAIN"),
	}
	pool := []Matchable{matchable("m1", 10, "500.00", "", "Rent march")}

	plan := PlanAutoMatches(txns, "USD", pool, tuning)
	require.Len(t, plan, 1)
	assert.Equal(t, "t1", plan[0].TransactionID)
}

func TestPlanAutoMatchesSkipsMatchedAndIgnored(t *testing.T) {
	tuning := config.DefaultMatchTuning()
	already := txn("t1", 10, "500.00", "REF-1", "PAYMENT")
	already.Matched = true
	ignored := txn("t2", 10, "500.00", "REF-1", "PAYMENT")
	ignored.Ignored = true
	pool := []Matchable{matchable("m1", 10, "500.00", "REF-1", "Payment")}

	plan := PlanAutoMatches([]transactions.BankTransaction{already, ignored}, "USD", pool, tuning)
	assert.Empty(t, plan)
}

func TestPlanAutoMatchesExactBeatsFuzzyElsewhere(t *testing.T) {
	tuning := config.DefaultMatchTuning()
	tx := txn("t1", 5, "150.00", "INV-100", "VENDOR PAYMENT")
	pool := []Matchable{
		matchable("m-fuzzy", 5, "150.00", "", "Vendor payment"),
		matchable("m-exact", 7, "150.00", "INV-100", "Invoice 100"),
	}

	plan := PlanAutoMatches([]transactions.BankTransaction{tx}, "USD", pool, tuning)
	require.Len(t, plan, 1)
	assert.Equal(t, "m-exact", plan[0].MatchableID)
	assert.Equal(t, constants.MatchExact, plan[0].MatchType)
	assert.Equal(t, 1.0, plan[0].Score)
}

func TestCheckMatchAmount(t *testing.T) {
	outstanding := decimal.RequireFromString("100.00")
	cases := []struct {
		name    string
		amount  string
		wantErr string
	}{
		{"zero rejected", "0", constants.ErrInvalidRequest},
		{"negative rejected", "-10", constants.ErrInvalidRequest},
		{"over outstanding rejected", "100.01", constants.ErrAmountExceedsBalance},
		{"partial ok", "40", ""},
		{"full outstanding ok", "100.00", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CheckMatchAmount(decimal.RequireFromString(c.amount), outstanding)
			if c.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, reconerr.IsKind(err, reconerr.KindValidation))
			assert.EqualError(t, err, c.wantErr)
		})
	}
}
