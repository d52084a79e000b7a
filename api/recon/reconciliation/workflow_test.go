package reconciliation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{constants.StatusDraft, constants.StatusCompleted, true},
		{constants.StatusCompleted, constants.StatusApproved, true},
		{constants.StatusCompleted, constants.StatusDraft, true},
		{constants.StatusDraft, constants.StatusApproved, false},
		{constants.StatusDraft, constants.StatusDraft, false},
		{constants.StatusApproved, constants.StatusDraft, false},
		{constants.StatusApproved, constants.StatusCompleted, false},
		{constants.StatusApproved, constants.StatusApproved, false},
		{"unknown", constants.StatusCompleted, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCompletionGateBlocksNonzeroDifference(t *testing.T) {
	err := completionGate(Summary{Difference: dec("200")})
	assert.True(t, reconerr.IsKind(err, reconerr.KindValidation))
	assert.Contains(t, err.Error(), "200")

	err = completionGate(Summary{Difference: dec("-0.01")})
	assert.True(t, reconerr.IsKind(err, reconerr.KindValidation))
}

func TestCompletionGatePassesZeroDifference(t *testing.T) {
	assert.NoError(t, completionGate(Summary{Difference: dec("0")}))
	assert.NoError(t, completionGate(Summary{Difference: dec("0.00")}))
}
