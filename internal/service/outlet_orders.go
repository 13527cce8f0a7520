package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/matrix"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
)

// GetOutletOrder lists every active product with the quantity ordered on the
// day by one outlet, or by all outlets together.
func (s *Service) GetOutletOrder(ctx context.Context, q domain.OutletOrderQuery) (domain.OutletOrderView, error) {
	day, err := s.parseDay(q.Date)
	if err != nil {
		return domain.OutletOrderView{}, err
	}

	outlets, err := s.repo.ListOutlets(ctx, true)
	if err != nil {
		return domain.OutletOrderView{}, err
	}
	matrix.SortOutlets(outlets)

	view := domain.OutletOrderView{
		Date:       day.Format(pricing.DateLayout),
		AllOutlets: q.AllOutlets,
		Outlets:    outlets,
		Products:   []domain.OutletOrderProduct{},
	}

	var selected *domain.Outlet
	for i := range outlets {
		if q.OutletID == 0 || outlets[i].ID == q.OutletID {
			selected = &outlets[i]
			break
		}
	}
	if q.OutletID != 0 && selected == nil {
		return domain.OutletOrderView{}, fmt.Errorf("outlet %d: %w", q.OutletID, store.ErrNotFound)
	}
	if selected != nil {
		view.SelectedOutletID = selected.ID
	}

	all, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.OutletOrderView{}, err
	}
	products := make([]domain.Product, 0, len(all))
	ids := make([]int64, 0, len(all))
	for _, p := range all {
		if p.Active {
			products = append(products, p)
			ids = append(ids, p.ID)
		}
	}
	matrix.SortProducts(products)

	receipts, err := s.repo.ListReceipts(ctx, store.ReceiptFilter{Day: day})
	if err != nil {
		return domain.OutletOrderView{}, err
	}
	var matcher matrix.Matcher
	if selected != nil {
		matcher = matrix.NewMatcher([]domain.Outlet{*selected})
	}

	quantities := make(map[int64]int)
	linePrices := make(map[int64]decimal.Decimal)
	for _, r := range receipts {
		if !q.AllOutlets {
			if selected == nil {
				break
			}
			if _, ok := matcher.Match(r); !ok {
				continue
			}
		}
		for _, line := range r.Lines {
			if line.ProductID == nil {
				continue
			}
			pid := *line.ProductID
			quantities[pid] += line.Quantity
			if _, seen := linePrices[pid]; !seen && line.Price.IsPositive() {
				linePrices[pid] = line.Price
			}
		}
	}

	book, err := loadPriceBook(ctx, s.repo, day, ids)
	if err != nil {
		return domain.OutletOrderView{}, err
	}

	for _, p := range products {
		price, _ := book.resolve(p.ID)
		unitPrice := price.Price
		w := book.selected[p.ID].Override
		switch {
		case w != nil && w.DeliveryPrice.IsPositive():
			unitPrice = w.DeliveryPrice
		case linePrices[p.ID].IsPositive():
			unitPrice = linePrices[p.ID]
		}
		view.Products = append(view.Products, domain.OutletOrderProduct{
			ID:       p.ID,
			Name:     p.Name,
			Unit:     p.Unit,
			Price:    unitPrice,
			Quantity: decimal.NewFromInt(int64(quantities[p.ID])),
		})
	}
	return view, nil
}

// SaveOutletOrder reconciles one outlet's unpaid receipt against the posted
// quantities. In all-outlets mode only the posted prices are saved.
func (s *Service) SaveOutletOrder(ctx context.Context, req domain.OutletOrderSaveRequest) (domain.OutletOrderSaveResult, error) {
	day, err := s.parseDay(req.Date)
	if err != nil {
		return domain.OutletOrderSaveResult{}, err
	}
	if req.AllOutlets {
		return s.saveOutletPrices(ctx, day.Format(pricing.DateLayout), req)
	}

	problems := make([]string, 0)
	if req.OutletID <= 0 {
		problems = append(problems, "outlet_id is required")
	}
	for _, productID := range sortedKeys(req.Quantities) {
		if !pricing.QuantityInRange(req.Quantities[productID]) {
			problems = append(problems, fmt.Sprintf("product %d: quantity must not exceed %d", productID, pricing.MaxQuantity))
		}
	}
	for _, productID := range sortedKeys(req.Prices) {
		if !req.Prices[productID].IsPositive() {
			continue
		}
		if qty, ok := req.Quantities[productID]; !ok || !qty.IsPositive() {
			problems = append(problems, fmt.Sprintf("product %d has a price but no quantity", productID))
		}
	}
	if len(problems) > 0 {
		return domain.OutletOrderSaveResult{}, invalid(problems...)
	}

	targets := make(map[int64]decimal.Decimal, len(req.Quantities))
	for productID, qty := range req.Quantities {
		if qty.IsPositive() {
			targets[productID] = qty
		}
	}

	var result domain.OutletOrderSaveResult
	err = s.repo.WithinTx(ctx, func(tx store.Session) error {
		result = domain.OutletOrderSaveResult{Date: day.Format(pricing.DateLayout), OutletID: req.OutletID}

		outlets, err := tx.GetOutletsByIDs(ctx, []int64{req.OutletID})
		if err != nil {
			return err
		}
		outlet, ok := outlets[req.OutletID]
		if !ok {
			return fmt.Errorf("outlet %d: %w", req.OutletID, store.ErrNotFound)
		}

		book, err := loadPriceBook(ctx, tx, day, sortedKeys(targets))
		if err != nil {
			return err
		}
		receipts, err := tx.ListReceipts(ctx, store.ReceiptFilter{Day: day})
		if err != nil {
			return err
		}

		res, err := s.reconcileOutlet(ctx, tx, day, book, receipts, outletOrder{
			outlet:      outlet,
			targets:     targets,
			prices:      req.Prices,
			pruneAbsent: true,
		})
		if err != nil {
			return err
		}
		result.ReceiptNumber = res.receiptNumber
		result.LinesWritten = res.linesWritten
		result.LinesRemoved = res.linesRemoved
		return nil
	})
	if err != nil {
		return domain.OutletOrderSaveResult{}, err
	}

	s.invalidateMatrix(ctx, day)
	s.logAudit(ctx, "outlet_order_save", "outlet", fmt.Sprintf("%d", req.OutletID),
		fmt.Sprintf("date=%s,receipt=%s,lines=%d,removed=%d", result.Date, result.ReceiptNumber, result.LinesWritten, result.LinesRemoved))
	return result, nil
}

func (s *Service) saveOutletPrices(ctx context.Context, date string, req domain.OutletOrderSaveRequest) (domain.OutletOrderSaveResult, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.OutletOrderSaveResult{}, err
	}

	var result domain.OutletOrderSaveResult
	err = s.repo.WithinTx(ctx, func(tx store.Session) error {
		result = domain.OutletOrderSaveResult{Date: date}

		book, err := loadPriceBook(ctx, tx, day, sortedKeys(req.Prices))
		if err != nil {
			return err
		}
		writes, err := applyPostedPrices(ctx, tx, book, req.Prices)
		if err != nil {
			return err
		}
		result.PricesChanged = writes.changed
		return nil
	})
	if err != nil {
		return domain.OutletOrderSaveResult{}, err
	}

	if result.PricesChanged > 0 {
		s.invalidateWeek(ctx, day)
		s.logAudit(ctx, "outlet_prices_save", "weekly_price", date, fmt.Sprintf("changed=%d", result.PricesChanged))
	}
	return result, nil
}
