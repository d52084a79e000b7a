package transactions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/statement"
)

func existing(d time.Time, amount, direction, reference, description string) BankTransaction {
	return BankTransaction{
		Date:        d,
		Amount:      decimal.RequireFromString(amount),
		Direction:   direction,
		Reference:   reference,
		Description: description,
	}
}

func raw(d time.Time, amount, direction, reference, description string) statement.RawTransaction {
	return statement.RawTransaction{
		Date:        d,
		Amount:      decimal.RequireFromString(amount),
		Direction:   direction,
		Reference:   reference,
		Description: description,
	}
}

func TestDedupIndexReferenceMatch(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	idx := NewDedupIndex([]BankTransaction{
		existing(d, "150.00", constants.DirectionDebit, "INV-100", "VENDOR PAYMENT"),
	})

	assert.True(t, idx.IsDuplicate(raw(d, "150.00", constants.DirectionDebit, "inv 100", "Totally different text")))
	// Same key, different reference, unrelated narration: distinct rows.
	assert.False(t, idx.IsDuplicate(raw(d, "150.00", constants.DirectionDebit, "INV-101", "OFFICE RENT MARCH")))
}

func TestDedupIndexDescriptionTrumpsReferenceMismatch(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	idx := NewDedupIndex([]BankTransaction{
		existing(d, "150.00", constants.DirectionDebit, "INV-100", "VENDOR PAYMENT MARCH"),
	})

	// Banks re-key re-presented rows, so a matching narration dedups even
	// when the references disagree.
	assert.True(t, idx.IsDuplicate(raw(d, "150.00", constants.DirectionDebit, "INV-200", "VENDOR PAYMENT MARCH")))
}

func TestDedupIndexDescriptionFallback(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	idx := NewDedupIndex([]BankTransaction{
		existing(d, "150.00", constants.DirectionDebit, "", "POS AMAZON RETAIL SEATTLE"),
	})

	assert.True(t, idx.IsDuplicate(raw(d, "150.00", constants.DirectionDebit, "", "POS AMAZON RETAIL SEATTLE")))
	assert.True(t, idx.IsDuplicate(raw(d, "150.00", constants.DirectionDebit, "", "POS AMAZON RETAIL SEATTL")))
	assert.False(t, idx.IsDuplicate(raw(d, "150.00", constants.DirectionDebit, "", "SALARY CREDIT MARCH")))
}

func TestDedupIndexKeyComponents(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	idx := NewDedupIndex([]BankTransaction{
		existing(d, "150.00", constants.DirectionDebit, "R1", "PAYMENT"),
	})

	assert.False(t, idx.IsDuplicate(raw(d.AddDate(0, 0, 1), "150.00", constants.DirectionDebit, "R1", "PAYMENT")))
	assert.False(t, idx.IsDuplicate(raw(d, "151.00", constants.DirectionDebit, "R1", "PAYMENT")))
	assert.False(t, idx.IsDuplicate(raw(d, "150.00", constants.DirectionCredit, "R1", "PAYMENT")))
}

func TestDedupIndexObserveWithinBatch(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	idx := NewDedupIndex(nil)

	row := raw(d, "99.00", constants.DirectionCredit, "DUP-1", "INTEREST")
	assert.False(t, idx.IsDuplicate(row))
	idx.Observe(row)
	assert.True(t, idx.IsDuplicate(row))
}

func TestSignedAmount(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	debit := existing(d, "42.10", constants.DirectionDebit, "", "")
	credit := existing(d, "42.10", constants.DirectionCredit, "", "")
	assert.Equal(t, "-42.1", debit.Signed().String())
	assert.Equal(t, "42.1", credit.Signed().String())
}
