// Package report renders back-office views as spreadsheets.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/matrix"
)

const (
	matrixSheet = "Matrix"
	// header row; product rows start below it
	headerRow = 2
)

// ContentType is the MIME type of the workbooks built here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MatrixWorkbook lays out a print-mode matrix view with products as rows and
// outlets as columns, followed by total, price and amount columns and a grand
// totals row.
func MatrixWorkbook(view domain.MatrixView) (*excelize.File, string, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", matrixSheet); err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("header style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Border: []excelize.Border{
			{Type: "top", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("total style: %w", err)
	}

	w := sheetWriter{f: f, sheet: matrixSheet}
	w.set(1, 1, "Vegetable Matrix "+view.Date)

	// Product | Unit | outlets... | Total | Price | Amount
	firstOutletCol := 3
	totalCol := firstOutletCol + len(view.Outlets)
	priceCol := totalCol + 1
	amountCol := totalCol + 2

	w.set(1, headerRow, "Product")
	w.set(2, headerRow, "Unit")
	for i, o := range view.Outlets {
		label := o.Name
		if o.SubLabel != "" {
			label += "\n" + o.SubLabel
		}
		w.set(firstOutletCol+i, headerRow, label)
	}
	w.set(totalCol, headerRow, "Total")
	w.set(priceCol, headerRow, "Price")
	w.set(amountCol, headerRow, "Amount")
	w.style(1, headerRow, amountCol, headerRow, headerStyle)

	outletCol := make(map[int64]int, len(view.Outlets))
	for i, o := range view.Outlets {
		outletCol[o.ID] = firstOutletCol + i
	}
	productRow := make(map[int64]int, len(view.Products))
	for i, p := range view.Products {
		productRow[p.ID] = headerRow + 1 + i
	}

	outletTotals := make(map[int64]decimal.Decimal, len(view.Outlets))
	for _, c := range view.Cells {
		row, okRow := productRow[c.ProductID]
		col, okCol := outletCol[c.OutletID]
		if !okRow || !okCol || c.Quantity.IsZero() {
			continue
		}
		w.set(col, row, c.Quantity.InexactFloat64())
		outletTotals[c.OutletID] = outletTotals[c.OutletID].Add(c.Quantity)
	}

	for _, p := range view.Products {
		row := productRow[p.ID]
		w.set(1, row, p.Name)
		w.set(2, row, p.Unit)
		if p.TotalQty.IsPositive() {
			w.set(totalCol, row, p.TotalQty.InexactFloat64())
		}
		w.set(priceCol, row, p.Price.InexactFloat64())
		if p.Status != matrix.StatusNoOrders {
			w.set(amountCol, row, p.TotalQty.Mul(p.Price).InexactFloat64())
		}
	}

	grandRow := headerRow + len(view.Products) + 1
	w.set(1, grandRow, "Grand Total")
	for _, o := range view.Outlets {
		w.set(outletCol[o.ID], grandRow, outletTotals[o.ID].InexactFloat64())
	}
	w.set(totalCol, grandRow, view.GrandTotalQty.InexactFloat64())
	w.set(amountCol, grandRow, view.GrandTotalAmount.InexactFloat64())
	w.style(1, grandRow, amountCol, grandRow, totalStyle)

	w.width(1, 1, 22)
	w.width(2, 2, 8)
	if len(view.Outlets) > 0 {
		w.width(firstOutletCol, totalCol-1, 12)
	}
	w.width(totalCol, amountCol, 12)

	if w.err != nil {
		_ = f.Close()
		return nil, "", w.err
	}
	return f, fmt.Sprintf("matrix_%s.xlsx", view.Date), nil
}

// sheetWriter keeps the first error of a run of cell writes.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(w.sheet, cell, value); err != nil {
		w.err = fmt.Errorf("write %s: %w", cell, err)
	}
}

func (w *sheetWriter) style(fromCol, fromRow, toCol, toRow, styleID int) {
	if w.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		w.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, from, to, styleID)
}

func (w *sheetWriter) width(fromCol, toCol int, width float64) {
	if w.err != nil {
		return
	}
	from, err := excelize.ColumnNumberToName(fromCol)
	if err != nil {
		w.err = err
		return
	}
	to, err := excelize.ColumnNumberToName(toCol)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetColWidth(w.sheet, from, to, width)
}
