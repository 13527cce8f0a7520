// Package matrix holds the outlet by product order grid: cell keys, outlet
// ordering, status flags, paging and view assembly.
package matrix

import (
	"sort"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
)

// CellKey addresses one cell of the order grid.
type CellKey struct {
	ProductID int64
	OutletID  int64
}

// Grid maps cells to requested quantities.
type Grid map[CellKey]decimal.Decimal

// GridFromCells builds a grid from posted cells. A repeated cell keeps the last value.
func GridFromCells(cells []domain.MatrixCellInput) Grid {
	g := make(Grid, len(cells))
	for _, c := range cells {
		g[CellKey{ProductID: c.ProductID, OutletID: c.OutletID}] = c.Quantity
	}
	return g
}

// OutletIDs returns the distinct outlets in the grid, ascending.
func (g Grid) OutletIDs() []int64 {
	seen := make(map[int64]struct{})
	for k := range g {
		seen[k.OutletID] = struct{}{}
	}
	return sortedIDs(seen)
}

// ProductIDs returns the distinct products in the grid, ascending.
func (g Grid) ProductIDs() []int64 {
	seen := make(map[int64]struct{})
	for k := range g {
		seen[k.ProductID] = struct{}{}
	}
	return sortedIDs(seen)
}

// ForOutlet returns the requested quantities of one outlet keyed by product.
func (g Grid) ForOutlet(outletID int64) map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal)
	for k, v := range g {
		if k.OutletID == outletID {
			out[k.ProductID] = v
		}
	}
	return out
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
