package statement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

func TestDelimitedAdapterDebitCreditColumns(t *testing.T) {
	input := strings.Join([]string{
		"Statement for account 00123",
		"",
		"Date,Narration,Ref No,Withdrawal Amt,Deposit Amt",
		"01/03/2024,ACH SALARY CREDIT,SAL-99,,\"45,000.00\"",
		"03/03/2024,POS AMAZON RETAIL,AMZ-17,\"1,250.00\",",
		"",
		"bad-date,SOMETHING,X,10.00,",
	}, "\n")

	adapter := &DelimitedAdapter{}
	rows, rowErrs, err := adapter.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, rowErrs, 1)

	assert.Equal(t, constants.DirectionCredit, rows[0].Direction)
	assert.Equal(t, "45000", rows[0].Amount.String())
	assert.Equal(t, "SAL-99", rows[0].Reference)
	assert.Equal(t, "ACH SALARY CREDIT", rows[0].Description)

	assert.Equal(t, constants.DirectionDebit, rows[1].Direction)
	assert.Equal(t, "1250", rows[1].Amount.String())

	// encoding/csv drops the blank lines, so the failed row is the fifth
	// record the reader saw.
	assert.Equal(t, 5, rowErrs[0].Row)
}

func TestDelimitedAdapterAmountWithTypeColumn(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount,Dr/Cr,Reference",
		"2024-03-05,VENDOR PAYMENT,150.00,DR,INV-100",
		"2024-03-06,CUSTOMER RECEIPT,980.00,CR,RCP-7",
	}, "\n")

	adapter := &DelimitedAdapter{}
	rows, rowErrs, err := adapter.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	assert.Equal(t, constants.DirectionDebit, rows[0].Direction)
	assert.Equal(t, "150", rows[0].Amount.String())
	assert.Equal(t, "-150", rows[0].Signed().String())
	assert.Equal(t, constants.DirectionCredit, rows[1].Direction)
	assert.Equal(t, "980", rows[1].Signed().String())
}

func TestDelimitedAdapterSignedAmountWithoutType(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount",
		"2024-03-05,CARD PURCHASE,-42.10",
		"2024-03-06,REFUND,42.10",
	}, "\n")

	adapter := &DelimitedAdapter{}
	rows, _, err := adapter.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, constants.DirectionDebit, rows[0].Direction)
	assert.Equal(t, "42.1", rows[0].Amount.String())
	assert.Equal(t, constants.DirectionCredit, rows[1].Direction)
}

func TestDelimitedAdapterNoHeader(t *testing.T) {
	adapter := &DelimitedAdapter{}
	_, _, err := adapter.Parse(strings.NewReader("just,some,cells\nwithout,a,header\n"))
	require.Error(t, err)
	assert.Equal(t, reconerr.KindParse, reconerr.KindOf(err))
}

func TestRegistryUnknownFormat(t *testing.T) {
	reg := DefaultRegistry()
	_, err := reg.Get("pdf")
	require.Error(t, err)
	assert.Equal(t, reconerr.KindParse, reconerr.KindOf(err))

	a, err := reg.Get("CSV")
	require.NoError(t, err)
	assert.Equal(t, constants.FormatDelimited, a.Format())
	assert.Len(t, reg.Formats(), 4)
}
