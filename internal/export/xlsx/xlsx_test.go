package xlsx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"circolo/internal/core"
	"circolo/internal/ledger"
)

func TestWrite(t *testing.T) {
	entries := []core.LedgerEntry{
		{Date: core.NewDate(2024, 10, 1), Amount: core.Cents(5000), Category: "Yoga", PaymentMethod: core.PaymentPOS, Source: core.SourceReceipt, SourceID: 1},
		{Date: core.NewDate(2024, 11, 1), Amount: core.Cents(100000), Category: "Regione", Source: core.SourceThirdParty, SourceID: 1},
	}
	r, err := ledger.Compose(entries, core.DateRange{}, ledger.Filter{Type: ledger.TypeIncome})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	title, err := f.GetCellValue(SheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "PRIMA NOTA - Solo Entrate - Tutti i movimenti", title)

	header, err := f.GetCellValue(SheetName, "E3")
	require.NoError(t, err)
	assert.Equal(t, "Entrata", header)

	raw := excelize.Options{RawCellValue: true}
	first, err := f.GetCellValue(SheetName, "A4")
	require.NoError(t, err)
	assert.Equal(t, "01/10/2024", first)

	amount, err := f.GetCellValue(SheetName, "E4", raw)
	require.NoError(t, err)
	assert.Equal(t, "50", amount)

	balance, err := f.GetCellValue(SheetName, "G5", raw)
	require.NoError(t, err)
	assert.Equal(t, "1050", balance)

	total, err := f.GetCellValue(SheetName, "E7", raw)
	require.NoError(t, err)
	assert.Equal(t, "1050", total)
}

func TestWriteEmptyReport(t *testing.T) {
	r, err := ledger.Compose(nil, core.DateRange{}, ledger.Filter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r))
	assert.NotZero(t, buf.Len())
}
