package matrix

import (
	"time"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/pricing"
)

// Snapshot is everything the matrix view reads for one day.
type Snapshot struct {
	Day time.Time
	// Outlets are the active outlets of the matrix groups.
	Outlets  []domain.Outlet
	Products []domain.Product
	// Overrides cover Day.
	Overrides []domain.WeeklyPriceOverride
	// Receipts are the non-void receipts of Day, lines included.
	Receipts []domain.Receipt
}

type cellAgg struct {
	qty      decimal.Decimal
	statuses []string
}

// Assemble builds the paged matrix view. Per-product totals, status flags and
// grand totals cover the whole group regardless of the requested page.
func Assemble(snap Snapshot, q domain.MatrixQuery) domain.MatrixView {
	matcher := NewMatcher(snap.Outlets)

	cells := make(map[CellKey]*cellAgg)
	productQty := make(map[int64]decimal.Decimal)
	hasUnpaid := make(map[int64]bool)
	hasPaid := make(map[int64]bool)
	withOrders := make(map[int64]bool)

	for _, r := range snap.Receipts {
		if r.Status == domain.StatusVoid {
			continue
		}
		outletID, ok := matcher.Match(r)
		if !ok {
			continue
		}
		withOrders[outletID] = true
		for _, line := range r.Lines {
			if line.ProductID == nil {
				continue
			}
			pid := *line.ProductID
			qty := decimal.NewFromInt(int64(line.Quantity))
			productQty[pid] = productQty[pid].Add(qty)
			switch r.Status {
			case domain.StatusUnpaid:
				hasUnpaid[pid] = true
			case domain.StatusPaid:
				hasPaid[pid] = true
			}

			key := CellKey{ProductID: pid, OutletID: outletID}
			agg, exists := cells[key]
			if !exists {
				agg = &cellAgg{}
				cells[key] = agg
			}
			agg.qty = agg.qty.Add(qty)
			agg.statuses = append(agg.statuses, r.Status)
		}
	}

	outlets := make([]domain.Outlet, 0, len(withOrders))
	for _, o := range snap.Outlets {
		if withOrders[o.ID] {
			outlets = append(outlets, o)
		}
	}
	SortOutlets(outlets)

	outletPageSize := DefaultOutletPageSize
	if q.Print && len(outlets) > 0 {
		outletPageSize = len(outlets)
	}
	outletPage := Paginate(len(outlets), q.Page, outletPageSize)

	catalog := make(map[int64]domain.Product, len(snap.Products))
	active := make([]domain.Product, 0, len(snap.Products))
	for _, p := range snap.Products {
		catalog[p.ID] = p
		if p.Active {
			active = append(active, p)
		}
	}
	SortProducts(active)
	productPage := Paginate(len(active), q.ProductPage, DefaultProductPageSize)

	selected := pricing.SelectByProduct(snap.Overrides, snap.Day)
	resolve := func(pid int64) (domain.PriceResult, bool) {
		p, ok := catalog[pid]
		if !ok {
			return domain.PriceResult{ProductID: pid}, false
		}
		return pricing.Resolve(p, selected[pid].Override), true
	}

	view := domain.MatrixView{
		Date:              snap.Day.Format(pricing.DateLayout),
		Page:              outletPage.Number,
		PageSize:          outletPage.Size,
		TotalPages:        outletPage.TotalPages,
		TotalOutlets:      len(outlets),
		ProductPage:       productPage.Number,
		ProductPageSize:   productPage.Size,
		TotalProductPages: productPage.TotalPages,
		TotalProducts:     len(active),
		Outlets:           make([]domain.MatrixOutlet, 0, outletPage.End-outletPage.Start),
		Products:          make([]domain.MatrixProduct, 0, productPage.End-productPage.Start),
		Cells:             []domain.MatrixCell{},
		GrandTotalQty:     decimal.Zero,
		GrandTotalAmount:  decimal.Zero,
	}

	visibleOutlets := outlets[outletPage.Start:outletPage.End]
	for _, o := range visibleOutlets {
		view.Outlets = append(view.Outlets, domain.MatrixOutlet{ID: o.ID, Name: o.Name, SubLabel: o.SubLabel, HasOrders: true})
	}

	for _, p := range active[productPage.Start:productPage.End] {
		price, _ := resolve(p.ID)
		total := productQty[p.ID]
		view.Products = append(view.Products, domain.MatrixProduct{
			ID:       p.ID,
			Name:     p.Name,
			Unit:     p.Unit,
			Cost:     price.Cost,
			Markup:   price.Markup,
			Price:    price.Price,
			TotalQty: total,
			Status:   ProductStatus(total, hasUnpaid[p.ID], hasPaid[p.ID]),
		})
		for _, o := range visibleOutlets {
			agg, ok := cells[CellKey{ProductID: p.ID, OutletID: o.ID}]
			if !ok {
				continue
			}
			view.Cells = append(view.Cells, domain.MatrixCell{
				ProductID: p.ID,
				OutletID:  o.ID,
				Quantity:  agg.qty,
				Status:    CellStatus(agg.statuses),
			})
		}
	}

	for pid, qty := range productQty {
		view.GrandTotalQty = view.GrandTotalQty.Add(qty)
		if price, ok := resolve(pid); ok {
			view.GrandTotalAmount = view.GrandTotalAmount.Add(qty.Mul(price.Price))
		}
	}
	return view
}
