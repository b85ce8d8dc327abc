package ledger

import (
	"fmt"
	"time"

	"circolo/internal/core"
)

// Item is one printed line of the prima nota.
type Item struct {
	Date           core.Date          `json:"date"`
	Description    string             `json:"description"`
	Category       string             `json:"category"`
	Amount         core.Money         `json:"amount"`
	RunningBalance core.Money         `json:"runningBalance"`
	PaymentMethod  core.PaymentMethod `json:"paymentMethod"`
	Source         core.SourceKind    `json:"source"`
	SourceID       int64              `json:"sourceId"`
}

type Summary struct {
	TotalIncome  core.Money `json:"totalIncome"`
	TotalExpense core.Money `json:"totalExpense"` // absolute value
	Net          core.Money `json:"net"`
	Count        int        `json:"count"`
}

type Period struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

// Report is the ledger report returned to callers. An empty Items slice means
// there were no movements in the period.
type Report struct {
	Period         Period                             `json:"period"`
	Type           TypeFilter                         `json:"type"`
	Method         core.PaymentMethod                 `json:"method,omitempty"`
	Items          []Item                             `json:"items"`
	TotalsByMethod map[core.PaymentMethod]MethodTotal `json:"totalsByMethod"`
	ByCategory     []CategoryTotal                    `json:"byCategory"`
	Summary        Summary                            `json:"summary"`
	GrandTotal     core.Money                         `json:"grandTotal"`
}

// NewReport assembles the report from an accumulated ledger.
func NewReport(l Ledger, t Totals, period core.DateRange, f Filter) Report {
	r := Report{
		Period:         Period{Start: period.Start, End: period.End},
		Type:           f.Type,
		Method:         f.Method,
		Items:          make([]Item, 0, len(l.Entries)),
		TotalsByMethod: make(map[core.PaymentMethod]MethodTotal, len(t.ByMethod)),
		ByCategory:     t.ByCategory,
		Summary: Summary{
			TotalIncome:  t.Income,
			TotalExpense: t.Expense.Abs(),
			Net:          t.Net,
			Count:        t.Count,
		},
		GrandTotal: t.Net,
	}
	for i, e := range l.Entries {
		var bal core.Money
		if i < len(l.Balances) {
			bal = l.Balances[i]
		}
		r.Items = append(r.Items, Item{
			Date:           e.Date,
			Description:    e.Description,
			Category:       e.Category,
			Amount:         e.Amount,
			RunningBalance: bal,
			PaymentMethod:  e.PaymentMethod,
			Source:         e.Source,
			SourceID:       e.SourceID,
		})
	}
	for _, mt := range t.ByMethod {
		r.TotalsByMethod[mt.Method] = mt
	}
	if r.ByCategory == nil {
		r.ByCategory = []CategoryTotal{}
	}
	return r
}

// Compose runs Build and Accumulate and wraps the result in a Report.
func Compose(entries []core.LedgerEntry, period core.DateRange, f Filter) (Report, error) {
	l, err := Build(entries, f)
	if err != nil {
		return Report{}, err
	}
	l, totals := Accumulate(l)
	return NewReport(l, totals, period, f), nil
}

type PrintHeader struct {
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	Period    string `json:"period"`
	PrintedAt string `json:"printedAt"`
}

type PrintRow struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Method      string `json:"method"`
	Sign        string `json:"sign"`
	Amount      string `json:"amount"`
	Balance     string `json:"balance"`
}

// PrintLayout is the report formatted for printing.
type PrintLayout struct {
	Header  PrintHeader `json:"header"`
	Rows    []PrintRow  `json:"rows"`
	Summary Summary     `json:"summary"`
}

const printDate = "02/01/2006"

// NewPrintLayout formats r for the printed cash book.
func NewPrintLayout(r Report, now time.Time) PrintLayout {
	p := PrintLayout{
		Header: PrintHeader{
			Title:     "PRIMA NOTA",
			Subtitle:  r.Type.Description(),
			Period:    PeriodText(core.DateRange{Start: r.Period.Start, End: r.Period.End}),
			PrintedAt: now.Format("02/01/2006 15:04"),
		},
		Rows:    make([]PrintRow, 0, len(r.Items)),
		Summary: r.Summary,
	}
	if r.Method != core.PaymentUnset {
		p.Header.Subtitle += " - " + r.Method.Label()
	}
	for _, it := range r.Items {
		sign := "+"
		if !(core.LedgerEntry{Source: it.Source, Amount: it.Amount}).IsIncome() {
			sign = "-"
		}
		p.Rows = append(p.Rows, PrintRow{
			Date:        it.Date.Format(printDate),
			Description: it.Description,
			Category:    it.Category,
			Method:      it.PaymentMethod.Label(),
			Sign:        sign,
			Amount:      FormatEuro(it.Amount.Abs()),
			Balance:     FormatEuro(it.RunningBalance),
		})
	}
	return p
}

// PeriodText describes a date range the way the printed header does.
func PeriodText(r core.DateRange) string {
	const layout = "02-01-2006"
	switch {
	case r.IsOpen():
		return "Tutti i movimenti"
	case r.End.IsZero():
		return fmt.Sprintf("Dal %s", r.Start.Format(layout))
	case r.Start.IsZero():
		return fmt.Sprintf("Fino al %s", r.End.Format(layout))
	default:
		return fmt.Sprintf("Dal %s al %s", r.Start.Format(layout), r.End.Format(layout))
	}
}

// FormatEuro renders "€ 12.34".
func FormatEuro(m core.Money) string {
	return "€ " + m.String()
}
