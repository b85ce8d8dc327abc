// Package ledger builds the prima nota: a chronological sequence of signed
// movements with running balances and grouped totals.
//
// Everything here is pure. Rows are read and normalized by the adapters
// package before they reach Build.
package ledger

import (
	"fmt"
	"sort"

	"circolo/internal/core"
)

// TypeFilter selects which movements a prima nota contains.
type TypeFilter int

const (
	TypeAll     TypeFilter = 0
	TypeIncome  TypeFilter = 1
	TypeExpense TypeFilter = 2
)

func (t TypeFilter) IsValid() bool {
	return t == TypeAll || t == TypeIncome || t == TypeExpense
}

// Description is the subtitle printed under the report title.
func (t TypeFilter) Description() string {
	switch t {
	case TypeAll:
		return "Movimenti completi (Entrate e Uscite)"
	case TypeIncome:
		return "Solo Entrate"
	case TypeExpense:
		return "Solo Uscite"
	default:
		return "Tipo sconosciuto"
	}
}

// Filter combines a movement type with an optional payment method.
// Method PaymentUnset means any method.
type Filter struct {
	Type   TypeFilter
	Method core.PaymentMethod
}

func (f Filter) Validate() error {
	if !f.Type.IsValid() {
		return &core.ValidationError{Field: "type", Msg: fmt.Sprintf("unknown type filter %d", f.Type)}
	}
	if f.Method != core.PaymentUnset && !f.Method.IsValid() {
		return &core.ValidationError{Field: "method", Msg: fmt.Sprintf("unknown payment method %d", f.Method)}
	}
	return nil
}

// IncludesIncome reports whether receipts and third-party rows are needed.
func (f Filter) IncludesIncome() bool { return f.Type != TypeExpense }

// IncludesExpenses reports whether expense rows are needed.
func (f Filter) IncludesExpenses() bool { return f.Type != TypeIncome }

func (f Filter) Match(e core.LedgerEntry) bool {
	switch f.Type {
	case TypeIncome:
		if !e.IsIncome() {
			return false
		}
	case TypeExpense:
		if e.IsIncome() {
			return false
		}
	}
	if f.Method != core.PaymentUnset && e.PaymentMethod != f.Method {
		return false
	}
	return true
}

// Ledger is the running ledger. Balances is empty until Accumulate runs and
// then has the same length as Entries.
type Ledger struct {
	Entries  []core.LedgerEntry
	Balances []core.Money
}

func (l Ledger) Len() int { return len(l.Entries) }

func (l Ledger) IsEmpty() bool { return len(l.Entries) == 0 }

// Balance returns the closing balance, zero for an empty ledger.
func (l Ledger) Balance() core.Money {
	if len(l.Balances) == 0 {
		return core.Money{}
	}
	return l.Balances[len(l.Balances)-1]
}

// Build filters entries and orders them by date, then source id. Source kind
// breaks the remaining ties so the order never depends on input order.
// An empty result is a valid, empty ledger.
func Build(entries []core.LedgerEntry, f Filter) (Ledger, error) {
	if err := f.Validate(); err != nil {
		return Ledger{}, err
	}
	out := make([]core.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return entryLess(out[i], out[j])
	})
	return Ledger{Entries: out}, nil
}

func entryLess(a, b core.LedgerEntry) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c < 0
	}
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	return a.Source < b.Source
}
