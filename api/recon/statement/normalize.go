package statement

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateFormats are tried in order. Day-first is the default for the slash and
// dash forms because every bank export seen so far uses it.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-06",
	"20060102",
	"01/02/2006 15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate normalizes the date formats the supported banks emit.
func ParseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format: " + s)
}

// ParseAmount normalizes locale quirks: currency symbols, spaces, thousands
// separators, decimal commas, and accounting-style parentheses for negatives.
func ParseAmount(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return decimal.Zero, errors.New("empty amount")
	}

	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = v[1 : len(v)-1]
	}
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "-") {
		negative = true
		v = strings.TrimSuffix(v, "-")
	}
	if strings.HasPrefix(v, "-") {
		negative = true
		v = v[1:]
	}

	// Strip everything that is not a digit or separator.
	var b strings.Builder
	for _, r := range v {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	v = b.String()
	if v == "" {
		return decimal.Zero, errors.New("no digits in amount: " + s)
	}

	lastComma := strings.LastIndex(v, ",")
	lastDot := strings.LastIndex(v, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: the later one is the decimal separator.
		if lastComma > lastDot {
			v = strings.ReplaceAll(v, ".", "")
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	case lastComma >= 0:
		// Comma only: decimal comma when it looks like one, thousands
		// separator otherwise.
		if len(v)-lastComma-1 == 2 && strings.Count(v, ",") == 1 {
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, errors.New("invalid amount: " + s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeCell lowercases a header cell and collapses interior whitespace.
func normalizeCell(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
