package statement

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"LedgerCorpSuite/api/constants"
)

func TestXLSXAdapterParse(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Account statement"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Date", "Particulars", "Withdrawal Amt", "Deposit Amt", "Ref No"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2024-03-05", "NEFT VENDOR PAYMENT", "150.00", "", "INV-100"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"2024-03-06", "INTEREST CREDIT", "", "12.50", ""}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{"not-a-date", "JUNK ROW", "1.00", "", ""}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	adapter := &XLSXAdapter{}
	rows, rowErrs, err := adapter.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, rowErrs, 1)

	assert.Equal(t, constants.DirectionDebit, rows[0].Direction)
	assert.Equal(t, "150", rows[0].Amount.String())
	assert.Equal(t, "INV-100", rows[0].Reference)
	assert.Equal(t, constants.DirectionCredit, rows[1].Direction)
	assert.Equal(t, "12.5", rows[1].Amount.String())
}

func TestXLSXAdapterRejectsGarbage(t *testing.T) {
	adapter := &XLSXAdapter{}
	_, _, err := adapter.Parse(bytes.NewReader([]byte("this is not a spreadsheet")))
	assert.Error(t, err)
}
