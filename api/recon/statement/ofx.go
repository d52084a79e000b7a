package statement

import (
	"io"
	"strings"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

// InterchangeAdapter parses OFX/QFX statement exports. The format is
// SGML-style: tags are not required to close, values run until the next tag.
// Only the transaction list is consumed; signon and balance blocks are
// skipped.
type InterchangeAdapter struct{}

func (a *InterchangeAdapter) Format() string { return constants.FormatInterchange }

func (a *InterchangeAdapter) Parse(r io.Reader) ([]RawTransaction, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, reconerr.Wrap(reconerr.KindParse, constants.ErrFileUploadFailed, err)
	}
	body := string(data)
	if !strings.Contains(strings.ToUpper(body), "<OFX>") {
		return nil, nil, reconerr.Parse(constants.ErrFileParsingFailed)
	}

	blocks := splitBlocks(body, "STMTTRN")
	if len(blocks) == 0 {
		return nil, nil, reconerr.Parse(constants.ErrEmptyFile)
	}

	var out []RawTransaction
	var rowErrs []RowError
	for i, block := range blocks {
		txn, err := parseInterchangeBlock(block)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		out = append(out, txn)
	}
	return out, rowErrs, nil
}

// splitBlocks returns the contents of each <TAG>...</TAG> section. A missing
// close tag ends the block at the next open tag, which some banks emit.
func splitBlocks(body, tag string) []string {
	upper := strings.ToUpper(body)
	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	var blocks []string
	pos := 0
	for {
		start := strings.Index(upper[pos:], open)
		if start < 0 {
			break
		}
		start += pos + len(open)
		end := strings.Index(upper[start:], closeTag)
		next := strings.Index(upper[start:], open)
		if end < 0 || (next >= 0 && next < end) {
			end = next
		}
		if end < 0 {
			blocks = append(blocks, body[start:])
			break
		}
		blocks = append(blocks, body[start:start+end])
		pos = start + end
	}
	return blocks
}

// tagValue extracts the value following <TAG> inside a block. SGML values
// terminate at the next '<' or end of line.
func tagValue(block, tag string) string {
	upper := strings.ToUpper(block)
	idx := strings.Index(upper, "<"+tag+">")
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(tag)+2:]
	if cut := strings.IndexAny(rest, "<\r\n"); cut >= 0 {
		rest = rest[:cut]
	}
	return strings.TrimSpace(rest)
}

func parseInterchangeBlock(block string) (RawTransaction, error) {
	posted := tagValue(block, "DTPOSTED")
	if len(posted) > 8 {
		posted = posted[:8]
	}
	date, err := ParseDate(posted)
	if err != nil {
		return RawTransaction{}, err
	}

	amount, err := ParseAmount(tagValue(block, "TRNAMT"))
	if err != nil {
		return RawTransaction{}, err
	}

	direction := constants.DirectionCredit
	if amount.IsNegative() {
		direction = constants.DirectionDebit
	} else if strings.EqualFold(tagValue(block, "TRNTYPE"), "DEBIT") {
		direction = constants.DirectionDebit
	}

	description := tagValue(block, "NAME")
	if memo := tagValue(block, "MEMO"); memo != "" {
		if description == "" {
			description = memo
		} else {
			description = description + " " + memo
		}
	}

	return RawTransaction{
		Date:        date,
		Description: description,
		Amount:      amount.Abs(),
		Direction:   direction,
		Reference:   tagValue(block, "FITID"),
	}, nil
}
