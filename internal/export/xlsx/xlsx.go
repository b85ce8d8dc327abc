// Package xlsx renders a prima nota report as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"circolo/internal/export"
	"circolo/internal/ledger"
)

const (
	SheetName   = "Prima Nota"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Workbook builds the workbook for r. The caller closes it.
func Workbook(r ledger.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetCellValue(SheetName, "A1", export.Title(r)); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}

	const headerRow = 3
	for i, h := range export.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "A1", bold); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, "A3", "G3", bold); err != nil {
		f.Close()
		return nil, err
	}

	rows := export.Rows(r)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if len(rows) > 0 {
		last := headerRow + len(rows)
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("E%d", headerRow+1), fmt.Sprintf("G%d", last), money); err != nil {
			f.Close()
			return nil, err
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "B", 40)
	_ = f.SetColWidth(SheetName, "C", "D", 18)
	_ = f.SetColWidth(SheetName, "E", "G", 14)
	return f, nil
}

// Write streams the workbook for r to w.
func Write(w io.Writer, r ledger.Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
