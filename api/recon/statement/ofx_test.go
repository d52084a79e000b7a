package statement

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

const sampleInterchange = `OFXHEADER:100
DATA:OFXSGML

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240305120000
<TRNAMT>150.00
<FITID>INV-100
<NAME>WIRE TRANSFER
<MEMO>ACME CORP
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240307
<TRNAMT>-42.10
<FITID>POS-771
<NAME>CARD PURCHASE
</STMTTRN>
</BANKTRANLIST>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestInterchangeAdapterParse(t *testing.T) {
	adapter := &InterchangeAdapter{}
	rows, rowErrs, err := adapter.Parse(strings.NewReader(sampleInterchange))
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "150", rows[0].Amount.String())
	assert.Equal(t, constants.DirectionCredit, rows[0].Direction)
	assert.Equal(t, "INV-100", rows[0].Reference)
	assert.Equal(t, "WIRE TRANSFER ACME CORP", rows[0].Description)

	assert.Equal(t, constants.DirectionDebit, rows[1].Direction)
	assert.Equal(t, "42.1", rows[1].Amount.String())
	assert.Equal(t, "POS-771", rows[1].Reference)
}

func TestInterchangeAdapterMissingCloseTags(t *testing.T) {
	// Some banks never emit </STMTTRN>; the next open tag ends the block.
	input := `<OFX>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240301
<TRNAMT>-10.00
<FITID>A1
<NAME>FEE
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240302
<TRNAMT>25.00
<FITID>A2
<NAME>INTEREST
</OFX>`

	adapter := &InterchangeAdapter{}
	rows, rowErrs, err := adapter.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[0].Reference)
	assert.Equal(t, "A2", rows[1].Reference)
}

func TestInterchangeAdapterRejectsOtherContent(t *testing.T) {
	adapter := &InterchangeAdapter{}
	_, _, err := adapter.Parse(strings.NewReader("Date,Amount\n2024-01-01,5"))
	require.Error(t, err)
	assert.Equal(t, reconerr.KindParse, reconerr.KindOf(err))
}

func TestInterchangeAdapterCollectsBadBlocks(t *testing.T) {
	input := `<OFX>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>bogus
<TRNAMT>10.00
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240302
<TRNAMT>25.00
<FITID>OK-1
<NAME>INTEREST
</STMTTRN>
</OFX>`

	adapter := &InterchangeAdapter{}
	rows, rowErrs, err := adapter.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 1, rowErrs[0].Row)
	assert.Equal(t, "OK-1", rows[0].Reference)
}
