// Package export turns a prima nota report into spreadsheet rows.
package export

import (
	"fmt"
	"time"

	"circolo/internal/core"
	"circolo/internal/ledger"
)

// Header is the column header of every export.
var Header = []string{"Data", "Descrizione", "Categoria", "Metodo", "Entrata", "Uscita", "Saldo"}

const dateLayout = "02/01/2006"

// Rows lays out the report one movement per row, followed by a blank row and
// the totals. Amounts are plain numbers in euros so spreadsheets can sum them.
func Rows(r ledger.Report) [][]any {
	out := make([][]any, 0, len(r.Items)+4)
	for _, it := range r.Items {
		var in, exp any = "", ""
		if (core.LedgerEntry{Source: it.Source, Amount: it.Amount}).IsIncome() {
			in = it.Amount.Abs().Euros()
		} else {
			exp = it.Amount.Abs().Euros()
		}
		out = append(out, []any{
			it.Date.Format(dateLayout),
			it.Description,
			it.Category,
			it.PaymentMethod.Label(),
			in,
			exp,
			it.RunningBalance.Euros(),
		})
	}
	out = append(out,
		[]any{},
		[]any{"", "Totale entrate", "", "", r.Summary.TotalIncome.Euros(), "", ""},
		[]any{"", "Totale uscite", "", "", "", r.Summary.TotalExpense.Euros(), ""},
		[]any{"", "Saldo", "", "", "", "", r.Summary.Net.Euros()},
	)
	return out
}

// Title heads the export, e.g. "PRIMA NOTA - Solo Entrate - Dal 01-09-2024 al 31-08-2025".
func Title(r ledger.Report) string {
	period := ledger.PeriodText(core.DateRange{Start: r.Period.Start, End: r.Period.End})
	return fmt.Sprintf("PRIMA NOTA - %s - %s", r.Type.Description(), period)
}

// FileName is the download name of an xlsx export generated at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("prima_nota_%s.xlsx", now.Format("20060102_150405"))
}
