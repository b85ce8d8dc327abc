// Package stats aggregates ledger entries into monthly trends, year-over-year
// comparisons and category breakdowns. Only income is counted.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"circolo/internal/core"
	"circolo/internal/ledger"
)

// Percent is a percentage change that may be undefined.
type Percent struct {
	Value      float64
	Applicable bool
}

// NotApplicable is how an undefined percentage is rendered.
const NotApplicable = "N/A"

// PercentChange returns (current - previous) / previous * 100 rounded to two
// decimals. With previous == 0 the change is not applicable.
func PercentChange(current, previous core.Money) Percent {
	if previous.Cents == 0 {
		return Percent{}
	}
	v := float64(current.Cents-previous.Cents) / float64(previous.Cents) * 100
	return Percent{Value: math.Round(v*100) / 100, Applicable: true}
}

func (p Percent) String() string {
	if !p.Applicable {
		return NotApplicable
	}
	sign := ""
	if p.Value >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, p.Value)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Applicable {
		return json.Marshal(NotApplicable)
	}
	return json.Marshal(p.Value)
}

// MonthStat is the income of one calendar month, joined with the same month
// of the reference year.
type MonthStat struct {
	Month       int        `json:"monthNumber"`
	Label       string     `json:"month"`
	Count       int        `json:"count"`
	IncomeTotal core.Money `json:"incomeTotal"`
	Reference   core.Money `json:"referenceTotal"`
	Difference  core.Money `json:"difference"`
	Change      Percent    `json:"change"`
}

// Trend is the monthly income of one fiscal year compared with a reference year.
type Trend struct {
	FiscalYear          int         `json:"fiscalYear"`
	Season              string      `json:"season"`
	Months              []MonthStat `json:"monthlyStats"`
	Total               core.Money  `json:"totalIncome"`
	ReferenceFiscalYear int         `json:"referenceFiscalYear"`
	ReferenceTotal      core.Money  `json:"referenceTotal"`
	Change              Percent     `json:"change"`
}

type bucket struct {
	count int
	sum   core.Money
}

// monthlyIncome buckets income entries of fiscal year fy by month 1-12.
func monthlyIncome(entries []core.LedgerEntry, fy int) map[int]bucket {
	out := make(map[int]bucket)
	for _, e := range entries {
		if !e.IsIncome() || core.FiscalYearOf(e.Date) != fy {
			continue
		}
		b := out[e.Date.Month()]
		b.count++
		b.sum = b.sum.Add(e.Amount)
		out[e.Date.Month()] = b
	}
	return out
}

// HasIncome reports whether any income entry falls in fiscal year fy.
func HasIncome(entries []core.LedgerEntry, fy int) bool {
	return len(monthlyIncome(entries, fy)) > 0
}

// MonthlyTrend buckets current by month in fiscal order (September first) and
// joins each month with the same month of reference, which is read as fiscal
// year fy-1. Months with no current income are left out, and the reference
// total sums only the months that remain, so the yearly change compares like
// with like.
func MonthlyTrend(current, reference []core.LedgerEntry, fy int) Trend {
	cur := monthlyIncome(current, fy)
	ref := monthlyIncome(reference, fy-1)

	t := Trend{
		FiscalYear:          fy,
		Season:              core.SeasonLabel(fy),
		Months:              []MonthStat{},
		ReferenceFiscalYear: fy - 1,
	}
	for _, m := range core.FiscalMonths() {
		b, ok := cur[m]
		if !ok {
			continue
		}
		r := ref[m].sum
		t.Months = append(t.Months, MonthStat{
			Month:       m,
			Label:       core.MonthName(m),
			Count:       b.count,
			IncomeTotal: b.sum,
			Reference:   r,
			Difference:  b.sum.Add(r.Neg()),
			Change:      PercentChange(b.sum, r),
		})
		t.Total = t.Total.Add(b.sum)
		t.ReferenceTotal = t.ReferenceTotal.Add(r)
	}
	t.Change = PercentChange(t.Total, t.ReferenceTotal)
	return t
}

// CategoryBreakdown returns income per category, largest first.
func CategoryBreakdown(l ledger.Ledger) []ledger.CategoryTotal {
	byCat := map[string]*ledger.CategoryTotal{}
	for _, e := range l.Entries {
		if !e.IsIncome() {
			continue
		}
		ct, ok := byCat[e.Category]
		if !ok {
			ct = &ledger.CategoryTotal{Key: e.Category}
			byCat[e.Category] = ct
		}
		ct.Count++
		ct.Sum = ct.Sum.Add(e.Amount)
	}
	out := make([]ledger.CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sum.Cents != out[j].Sum.Cents {
			return out[i].Sum.Cents > out[j].Sum.Cents
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ActivityStat is the receipt count and income of one activity.
type ActivityStat struct {
	Activity    string     `json:"activity"`
	Receipts    int        `json:"receipts"`
	IncomeTotal core.Money `json:"incomeTotal"`
}

// ActivityStats lists every known activity with its income, including
// activities that had none.
func ActivityStats(l ledger.Ledger, activities []string) []ActivityStat {
	seen := map[string]bool{}
	var out []ActivityStat
	for _, ct := range CategoryBreakdown(l) {
		seen[ct.Key] = true
		out = append(out, ActivityStat{Activity: ct.Key, Receipts: ct.Count, IncomeTotal: ct.Sum})
	}
	for _, a := range activities {
		if !seen[a] {
			seen[a] = true
			out = append(out, ActivityStat{Activity: a})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IncomeTotal.Cents != out[j].IncomeTotal.Cents {
			return out[i].IncomeTotal.Cents > out[j].IncomeTotal.Cents
		}
		return out[i].Activity < out[j].Activity
	})
	if out == nil {
		out = []ActivityStat{}
	}
	return out
}

// PeriodStat is the income of one calendar month.
type PeriodStat struct {
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	Label       string     `json:"monthName"`
	Receipts    int        `json:"receipts"`
	IncomeTotal core.Money `json:"incomeTotal"`
}

// TrailingRange is the window TrailingTrend covers: from the first day of the
// month eleven months before now, through now.
func TrailingRange(now time.Time) core.DateRange {
	end := core.DateOf(now)
	first := core.NewDate(end.Year(), end.Month(), 1)
	return core.DateRange{Start: core.DateOf(first.AddDate(0, -11, 0)), End: end}
}

// TrailingTrend reports income for each of the last twelve calendar months
// ending at now, oldest first. Months without income are omitted.
func TrailingTrend(entries []core.LedgerEntry, now time.Time) []PeriodStat {
	window := TrailingRange(now)
	type key struct{ y, m int }
	buckets := map[key]*PeriodStat{}
	for _, e := range entries {
		if !e.IsIncome() || !window.Contains(e.Date) {
			continue
		}
		k := key{e.Date.Year(), e.Date.Month()}
		ps, ok := buckets[k]
		if !ok {
			ps = &PeriodStat{Year: k.y, Month: k.m, Label: core.MonthName(k.m)}
			buckets[k] = ps
		}
		ps.Receipts++
		ps.IncomeTotal = ps.IncomeTotal.Add(e.Amount)
	}
	out := make([]PeriodStat, 0, len(buckets))
	for _, ps := range buckets {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// CategoryStat is one line of the category section of the statistics report.
type CategoryStat struct {
	Category    string     `json:"category"`
	IncomeTotal core.Money `json:"incomeTotal"`
}

// Report is the statistics report for one fiscal year.
type Report struct {
	Trend
	CategoryStats []CategoryStat `json:"categoryStats"`
}

// NewReport combines the monthly trend with the category breakdown of the
// same fiscal year.
func NewReport(current, reference []core.LedgerEntry, fy int) (Report, error) {
	inYear := make([]core.LedgerEntry, 0, len(current))
	for _, e := range current {
		if core.FiscalYearOf(e.Date) == fy {
			inYear = append(inYear, e)
		}
	}
	l, err := ledger.Build(inYear, ledger.Filter{Type: ledger.TypeIncome})
	if err != nil {
		return Report{}, err
	}
	r := Report{Trend: MonthlyTrend(current, reference, fy), CategoryStats: []CategoryStat{}}
	for _, ct := range CategoryBreakdown(l) {
		r.CategoryStats = append(r.CategoryStats, CategoryStat{Category: ct.Key, IncomeTotal: ct.Sum})
	}
	return r, nil
}
