package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const salesSheet = "Sales"

var workbookHeader = []interface{}{"Date", "Product", "Type", "Quantity", "USD", "LRD"}

// WriteWorkbook writes the report as an XLSX workbook with one row per entry and a totals row.
// Dates are written in loc.
func WriteWorkbook(report *SalesReport, loc *time.Location, w io.Writer) error {
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", salesSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(salesSheet, "A1", &workbookHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(salesSheet, "A1", "F1", bold); err != nil {
		return err
	}

	row := 2
	for _, e := range report.Sales {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			e.SaleDate.In(loc).Format("2006-01-02 15:04"),
			e.Product.Name,
			e.Type,
			e.Quantity,
			e.TotalAmount.USD.InexactFloat64(),
			e.TotalAmount.LRD.InexactFloat64(),
		}
		if err := f.SetSheetRow(salesSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	totalCell, _ := excelize.CoordinatesToCellName(1, row)
	totals := []interface{}{
		"Total", "", "", report.Count,
		report.Totals.USD.InexactFloat64(),
		report.Totals.LRD.InexactFloat64(),
	}
	if err := f.SetSheetRow(salesSheet, totalCell, &totals); err != nil {
		return err
	}
	lastCell, _ := excelize.CoordinatesToCellName(6, row)
	if err := f.SetCellStyle(salesSheet, totalCell, lastCell, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(salesSheet, "A", "B", 22); err != nil {
		return err
	}

	return f.Write(w)
}
