package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/matrix"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
)

// outletOrder is the requested state of one outlet on one day.
type outletOrder struct {
	outlet  domain.Outlet
	targets map[int64]decimal.Decimal
	prices  map[int64]decimal.Decimal
	// pruneAbsent removes unpaid lines for products missing from targets.
	pruneAbsent bool
}

type reconcileResult struct {
	receiptNumber string
	created       bool
	skipped       bool
	linesWritten  int
	linesRemoved  int
}

// reconcileOutlet moves the outlet's unpaid receipt of day towards the
// requested totals. Quantities on paid receipts are a floor and are never
// touched; only the difference lands on the single unpaid receipt.
func (s *Service) reconcileOutlet(ctx context.Context, tx store.Session, day time.Time, book priceBook, receipts []domain.Receipt, order outletOrder) (reconcileResult, error) {
	var res reconcileResult
	matcher := matrix.NewMatcher([]domain.Outlet{order.outlet})

	paid := make(map[int64]int)
	var unpaid *domain.Receipt
	for i := range receipts {
		r := receipts[i]
		if _, ok := matcher.Match(r); !ok {
			continue
		}
		switch r.Status {
		case domain.StatusPaid:
			for _, line := range r.Lines {
				if line.ProductID != nil {
					paid[*line.ProductID] += line.Quantity
				}
			}
		case domain.StatusUnpaid:
			if unpaid == nil {
				unpaid = &receipts[i]
			}
		}
	}

	need := make(map[int64]int, len(order.targets))
	needsReceipt := false
	for productID, target := range order.targets {
		qty := pricing.RoundQuantity(target) - paid[productID]
		if qty < 0 {
			qty = 0
		}
		need[productID] = qty
		if qty > 0 {
			needsReceipt = true
		}
	}

	if unpaid == nil && !needsReceipt {
		res.skipped = true
		return res, nil
	}

	if unpaid == nil {
		number, err := s.NextReceiptNumber(ctx, tx)
		if err != nil {
			return res, err
		}
		outletID := order.outlet.ID
		created, err := tx.CreateReceipt(ctx, domain.Receipt{
			Number:        number,
			Date:          day,
			OutletID:      &outletID,
			OutletName:    order.outlet.Name,
			OutletAddress: order.outlet.Address,
			ContactNumber: domain.NormalizeContact(order.outlet.ContactNumber, s.contactRegion),
			Type:          domain.ReceiptTypeDelivery,
			Status:        domain.StatusUnpaid,
			TotalAmount:   decimal.Zero,
			PaidAmount:    decimal.Zero,
			CreatedBy:     actorName(ctx),
		})
		if err != nil {
			return res, fmt.Errorf("create unpaid receipt for outlet %d: %w", order.outlet.ID, err)
		}
		unpaid = created
		res.created = true
	}
	res.receiptNumber = unpaid.Number

	amounts := make(map[int64]decimal.Decimal, len(unpaid.Lines))
	byProduct := make(map[int64]domain.ReceiptLine, len(unpaid.Lines))
	extras := make([]domain.ReceiptLine, 0)
	for _, line := range unpaid.Lines {
		amounts[line.ID] = line.Amount
		if line.ProductID == nil {
			continue
		}
		if _, dup := byProduct[*line.ProductID]; dup {
			extras = append(extras, line)
			continue
		}
		byProduct[*line.ProductID] = line
	}

	remove := func(line domain.ReceiptLine) error {
		if err := tx.DeleteReceiptLine(ctx, line.ID); err != nil {
			return fmt.Errorf("delete receipt line %d: %w", line.ID, err)
		}
		delete(amounts, line.ID)
		res.linesRemoved++
		return nil
	}

	for _, productID := range sortedKeys(order.targets) {
		qty := need[productID]
		line, exists := byProduct[productID]

		if qty <= 0 {
			if exists {
				if err := remove(line); err != nil {
					return res, err
				}
			}
			continue
		}

		price, cost := book.linePrice(productID, order.prices[productID])
		amount := pricing.LineAmount(qty, price)

		if exists {
			line.Quantity = qty
			line.Price = price
			line.Amount = amount
			line.CostPriceSnapshot = cost
			if err := tx.UpdateReceiptLine(ctx, line); err != nil {
				return res, fmt.Errorf("update receipt line %d: %w", line.ID, err)
			}
			amounts[line.ID] = amount
			res.linesWritten++
			continue
		}

		name, unit := "Unknown", "pcs"
		if p, ok := book.products[productID]; ok {
			name, unit = p.Name, p.Unit
		}
		pid := productID
		created, err := tx.CreateReceiptLine(ctx, domain.ReceiptLine{
			ReceiptID:         unpaid.ID,
			ProductID:         &pid,
			ItemName:          name,
			Quantity:          qty,
			Unit:              unit,
			Price:             price,
			CostPriceSnapshot: cost,
			Amount:            amount,
		})
		if err != nil {
			return res, fmt.Errorf("add receipt line for product %d: %w", productID, err)
		}
		amounts[created.ID] = amount
		res.linesWritten++
	}

	if order.pruneAbsent {
		for productID, line := range byProduct {
			if _, requested := order.targets[productID]; requested {
				continue
			}
			if err := remove(line); err != nil {
				return res, err
			}
		}
		for _, line := range extras {
			if err := remove(line); err != nil {
				return res, err
			}
		}
	}

	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	unpaid.TotalAmount = total
	if err := tx.UpdateReceipt(ctx, *unpaid); err != nil {
		return res, fmt.Errorf("update receipt total %s: %w", unpaid.Number, err)
	}
	return res, nil
}
