package statement

import (
	"encoding/csv"
	"io"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

// DelimitedAdapter parses delimited-text statements. Column order and locale
// vary per bank; the header scan and cell normalization absorb that.
type DelimitedAdapter struct {
	// Comma overrides the delimiter; zero means ','.
	Comma rune
}

func (a *DelimitedAdapter) Format() string { return constants.FormatDelimited }

func (a *DelimitedAdapter) Parse(r io.Reader) ([]RawTransaction, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if a.Comma != 0 {
		reader.Comma = a.Comma
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, reconerr.Wrap(reconerr.KindParse, constants.ErrFileParsingFailed, err)
	}
	return mapGrid(rows)
}
