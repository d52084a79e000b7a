package statement

import (
	"io"
	"os"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

// XLSXAdapter parses modern Excel statements via excelize. The first sheet is
// the statement; anything else (summary tabs) is ignored.
type XLSXAdapter struct{}

func (a *XLSXAdapter) Format() string { return constants.FormatXLSX }

func (a *XLSXAdapter) Parse(r io.Reader) ([]RawTransaction, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, reconerr.Wrap(reconerr.KindParse, constants.ErrFileParsingFailed, err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, reconerr.Wrap(reconerr.KindParse, constants.ErrFileParsingFailed, err)
	}
	return mapGrid(rows)
}

// XLSAdapter parses legacy Excel statements. xlsReader wants a file path, so
// the upload is spooled to a temp file first.
type XLSAdapter struct{}

func (a *XLSAdapter) Format() string { return constants.FormatXLS }

func (a *XLSAdapter) Parse(r io.Reader) ([]RawTransaction, []RowError, error) {
	tmp, err := os.CreateTemp("", "stmt-*.xls")
	if err != nil {
		return nil, nil, reconerr.Wrap(reconerr.KindParse, constants.ErrFileUploadFailed, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, nil, reconerr.Wrap(reconerr.KindParse, constants.ErrFileUploadFailed, err)
	}
	tmp.Close()

	book, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, nil, reconerr.Wrap(reconerr.KindParse, constants.ErrFileParsingFailed, err)
	}
	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, nil, reconerr.Parse(constants.ErrFileParsingFailed)
	}

	var rows [][]string
	for _, xlsRow := range sheet.GetRows() {
		var rowVals []string
		for _, col := range xlsRow.GetCols() {
			rowVals = append(rowVals, col.GetString())
		}
		rows = append(rows, rowVals)
	}
	return mapGrid(rows)
}
