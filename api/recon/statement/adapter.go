// Package statement turns uploaded bank statement files into normalized
// transaction rows. Bank- and format-specific quirks stay inside the
// adapters; everything downstream sees the same RawTransaction shape.
package statement

import (
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

// RawTransaction is one normalized statement row. Amount is always a
// positive magnitude; Direction carries the side.
type RawTransaction struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction"`
	Reference   string          `json:"reference"`
}

// Signed returns the amount with credit positive and debit negative.
func (t RawTransaction) Signed() decimal.Decimal {
	if t.Direction == constants.DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// RowError is a per-row parse failure. Collected, never fatal for the file.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Adapter parses one statement format. Parse returns the rows it could
// normalize plus the per-row failures; the error return is reserved for an
// unreadable file.
type Adapter interface {
	Format() string
	Parse(r io.Reader) ([]RawTransaction, []RowError, error)
}

// Registry holds the registered format adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Panics on duplicate format.
func (r *Registry) Register(a Adapter) {
	key := strings.ToLower(a.Format())
	if _, ok := r.adapters[key]; ok {
		panic("duplicate statement adapter format: " + key)
	}
	r.adapters[key] = a
}

// Get returns the adapter for a format, or a not-found error.
func (r *Registry) Get(format string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(format)]
	if !ok {
		return nil, reconerr.Parse(constants.FormatError(constants.ErrUnsupportedFormat, format))
	}
	return a, nil
}

// Formats lists the registered format keys.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&DelimitedAdapter{})
	r.Register(&InterchangeAdapter{})
	r.Register(&XLSXAdapter{})
	r.Register(&XLSAdapter{})
	return r
}
