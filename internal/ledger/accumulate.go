package ledger

import (
	"sort"

	"circolo/internal/core"
)

const (
	DirectionIncome  = "Entrate"
	DirectionExpense = "Uscite"
)

// CategoryTotal is one group of a partition of the ledger.
type CategoryTotal struct {
	Key   string     `json:"key"`
	Count int        `json:"count"`
	Sum   core.Money `json:"sum"`
}

type MethodTotal struct {
	Method core.PaymentMethod `json:"method"`
	Label  string             `json:"label"`
	Count  int                `json:"count"`
	Sum    core.Money         `json:"sum"`
}

// Totals holds the grouped sums of one ledger. Each of ByCategory, ByMethod
// and ByDirection partitions the whole ledger, so each sums to Net.
type Totals struct {
	ByCategory  []CategoryTotal
	ByMethod    []MethodTotal
	ByDirection []CategoryTotal
	Income      core.Money
	Expense     core.Money // negative or zero
	Net         core.Money
	Count       int
}

// Accumulate fills the running balances in one forward pass and computes the
// grouped totals alongside.
func Accumulate(l Ledger) (Ledger, Totals) {
	balances := make([]core.Money, len(l.Entries))
	var (
		running  core.Money
		totals   Totals
		byCat    = map[string]*CategoryTotal{}
		byMethod = map[core.PaymentMethod]*MethodTotal{}
	)
	for i, e := range l.Entries {
		running = running.Add(e.Amount)
		balances[i] = running

		ct, ok := byCat[e.Category]
		if !ok {
			ct = &CategoryTotal{Key: e.Category}
			byCat[e.Category] = ct
		}
		ct.Count++
		ct.Sum = ct.Sum.Add(e.Amount)

		mt, ok := byMethod[e.PaymentMethod]
		if !ok {
			mt = &MethodTotal{Method: e.PaymentMethod, Label: e.PaymentMethod.Label()}
			byMethod[e.PaymentMethod] = mt
		}
		mt.Count++
		mt.Sum = mt.Sum.Add(e.Amount)

		if e.IsIncome() {
			totals.Income = totals.Income.Add(e.Amount)
		} else {
			totals.Expense = totals.Expense.Add(e.Amount)
		}
	}

	totals.Count = len(l.Entries)
	totals.Net = running
	totals.ByCategory = make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		totals.ByCategory = append(totals.ByCategory, *ct)
	}
	sort.Slice(totals.ByCategory, func(i, j int) bool {
		return totals.ByCategory[i].Key < totals.ByCategory[j].Key
	})
	totals.ByMethod = make([]MethodTotal, 0, len(byMethod))
	for _, mt := range byMethod {
		totals.ByMethod = append(totals.ByMethod, *mt)
	}
	sort.Slice(totals.ByMethod, func(i, j int) bool {
		return totals.ByMethod[i].Method < totals.ByMethod[j].Method
	})
	totals.ByDirection = directionTotals(l.Entries, totals)

	return Ledger{Entries: l.Entries, Balances: balances}, totals
}

func directionTotals(entries []core.LedgerEntry, t Totals) []CategoryTotal {
	var in, out int
	for _, e := range entries {
		if e.IsIncome() {
			in++
		} else {
			out++
		}
	}
	var res []CategoryTotal
	if in > 0 {
		res = append(res, CategoryTotal{Key: DirectionIncome, Count: in, Sum: t.Income})
	}
	if out > 0 {
		res = append(res, CategoryTotal{Key: DirectionExpense, Count: out, Sum: t.Expense})
	}
	return res
}

// SumOf adds up a partition.
func SumOf(groups []CategoryTotal) core.Money {
	var s core.Money
	for _, g := range groups {
		s = s.Add(g.Sum)
	}
	return s
}
