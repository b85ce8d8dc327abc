package adapters

import (
	"errors"
	"strings"

	"circolo/internal/core"
)

// withSource fills in where a parse error came from.
func withSource(err error, src core.SourceKind, id int64, field string) error {
	var pe *core.ParseError
	if errors.As(err, &pe) {
		return &core.ParseError{Source: src, ID: id, Field: field, Value: pe.Value, Err: pe.Err}
	}
	return &core.ParseError{Source: src, ID: id, Field: field, Err: err}
}

func parseDate(src core.SourceKind, id int64, s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, withSource(err, src, id, "date")
	}
	return d, nil
}

func parseAmount(src core.SourceKind, id int64, s string) (core.Money, error) {
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, &core.ParseError{Source: src, ID: id, Field: "amount", Value: s, Err: err}
	}
	return m, nil
}

// MayFallWithin prefilters a raw date before parsing. A zero-padded ISO date
// is compared as text and dropped when outside r; any other layout is kept
// and judged once parsed. Stores apply the same rule in SQL.
func MayFallWithin(raw string, r core.DateRange) bool {
	s := strings.TrimSpace(raw)
	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return true
	}
	lo, hi := r.ISOBounds()
	d := s[:10]
	return d >= lo && d <= hi
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// NormalizeReceipt converts a receipt row into a positive ledger entry.
func NormalizeReceipt(r ReceiptRow) (core.LedgerEntry, error) {
	d, err := parseDate(core.SourceReceipt, r.ID, r.Date)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	amt, err := parseAmount(core.SourceReceipt, r.ID, r.Amount)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return core.LedgerEntry{
		Date:          d,
		Amount:        amt.Abs(),
		Category:      r.Activity,
		PaymentMethod: core.ParsePaymentMethod(r.PaymentMethod).OrDefault(),
		Source:        core.SourceReceipt,
		SourceID:      r.ID,
		Description:   joinNonEmpty(" - ", r.Description, r.MemberName),
	}, nil
}

// NormalizeExpense converts an expense row into a negative ledger entry.
// Rows stored with a negative amount are not flipped back.
func NormalizeExpense(r ExpenseRow) (core.LedgerEntry, error) {
	d, err := parseDate(core.SourceExpense, r.ID, r.Date)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	amt, err := parseAmount(core.SourceExpense, r.ID, r.Amount)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return core.LedgerEntry{
		Date:          d,
		Amount:        amt.Abs().Neg(),
		Category:      r.Category,
		PaymentMethod: core.ParsePaymentMethod(r.PaymentMethod).OrDefault(),
		Source:        core.SourceExpense,
		SourceID:      r.ID,
		Description:   joinNonEmpty(" - ", r.Description, r.Supplier),
	}, nil
}

// NormalizeThirdParty converts an ente receipt into a positive ledger entry
// categorized by the paying body.
func NormalizeThirdParty(r ThirdPartyRow) (core.LedgerEntry, error) {
	d, err := parseDate(core.SourceThirdParty, r.ID, r.Date)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	amt, err := parseAmount(core.SourceThirdParty, r.ID, r.Amount)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return core.LedgerEntry{
		Date:          d,
		Amount:        amt.Abs(),
		Category:      r.Entity,
		PaymentMethod: core.ParsePaymentMethod(r.PaymentMethod).OrDefault(),
		Source:        core.SourceThirdParty,
		SourceID:      r.ID,
		Description:   joinNonEmpty(" - ", r.Description, r.Entity),
	}, nil
}

// ToReceipt converts a receipt row into the type used for ranking.
func ToReceipt(r ReceiptRow) (core.Receipt, error) {
	e, err := NormalizeReceipt(r)
	if err != nil {
		return core.Receipt{}, err
	}
	return core.Receipt{
		ID:            r.ID,
		MemberID:      r.MemberID,
		Date:          e.Date,
		Amount:        e.Amount,
		PaymentMethod: e.PaymentMethod,
		Category:      e.Category,
		Description:   e.Description,
	}, nil
}
