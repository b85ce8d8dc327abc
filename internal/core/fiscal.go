package core

import "fmt"

// FiscalStartMonth is the first month of the sporting year.
const FiscalStartMonth = 9

var monthNames = [...]string{
	"Gennaio", "Febbraio", "Marzo", "Aprile", "Maggio", "Giugno",
	"Luglio", "Agosto", "Settembre", "Ottobre", "Novembre", "Dicembre",
}

// FiscalYearOf returns the sporting year a date belongs to, named after the
// calendar year in which it starts.
func FiscalYearOf(d Date) int {
	if d.Month() >= FiscalStartMonth {
		return d.Year()
	}
	return d.Year() - 1
}

// FiscalYearRange returns 1 September fy through 31 August fy+1.
func FiscalYearRange(fy int) DateRange {
	return DateRange{
		Start: NewDate(fy, FiscalStartMonth, 1),
		End:   NewDate(fy+1, FiscalStartMonth-1, 31),
	}
}

// SeasonLabel formats a fiscal year as "2024/2025".
func SeasonLabel(fy int) string {
	return fmt.Sprintf("%d/%d", fy, fy+1)
}

// FiscalMonths returns the months 1-12 in sporting-year order, September first.
func FiscalMonths() []int {
	out := make([]int, 0, 12)
	for i := 0; i < 12; i++ {
		out = append(out, (FiscalStartMonth-1+i)%12+1)
	}
	return out
}

// FiscalMonthIndex is the position of month m inside the sporting year (0 for September).
func FiscalMonthIndex(m int) int {
	return (m - FiscalStartMonth + 12) % 12
}

// MonthName returns the Italian name for month 1-12.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m-1]
}
