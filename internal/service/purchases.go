package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
)

func purchaseStatus(total decimal.Decimal, paid decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total):
		return domain.StatusPaid
	case paid.IsPositive():
		return domain.StatusPartial
	default:
		return domain.StatusUnpaid
	}
}

// CreatePurchase records a supplier purchase, numbers it and books the stock
// in for every catalog line.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	day, err := s.parseDay(req.Date)
	if err != nil {
		return domain.Purchase{}, err
	}

	problems := make([]string, 0)
	supplierName := strings.TrimSpace(req.SupplierName)
	if req.SupplierID == nil && supplierName == "" {
		problems = append(problems, "supplier_id or supplier_name is required")
	}
	if req.PaidAmount.IsNegative() {
		problems = append(problems, "paid_amount must not be negative")
	}
	lines := make([]domain.PurchaseLineInput, 0, len(req.Lines))
	for i, line := range req.Lines {
		if line.Quantity > pricing.MaxQuantity {
			problems = append(problems, fmt.Sprintf("lines[%d]: quantity must not exceed %d", i, pricing.MaxQuantity))
			continue
		}
		if line.Quantity <= 0 || line.Cost.IsNegative() {
			continue
		}
		if line.ProductID == nil && strings.TrimSpace(line.ItemName) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		problems = append(problems, "at least one line with quantity > 0 is required")
	}
	if len(problems) > 0 {
		return domain.Purchase{}, invalid(problems...)
	}

	var created domain.Purchase
	err = s.repo.WithinTx(ctx, func(tx store.Session) error {
		supplier, err := s.resolveSupplier(ctx, tx, req, supplierName)
		if err != nil {
			return err
		}

		productIDs := make([]int64, 0, len(lines))
		for _, line := range lines {
			if line.ProductID != nil {
				productIDs = append(productIDs, *line.ProductID)
			}
		}
		products, err := tx.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return err
		}

		purchase := domain.Purchase{
			Date:            day,
			SupplierID:      &supplier.ID,
			SupplierName:    supplier.Name,
			SupplierAddress: firstNonEmpty(req.SupplierAddress, supplier.Address),
			ContactNumber:   domain.NormalizeContact(firstNonEmpty(req.ContactNumber, supplier.ContactNumber), s.contactRegion),
			PaidAmount:      req.PaidAmount,
			Notes:           strings.TrimSpace(req.Notes),
			CreatedBy:       actorName(ctx),
			Lines:           make([]domain.PurchaseLine, 0, len(lines)),
		}

		total := decimal.Zero
		for _, in := range lines {
			line := domain.PurchaseLine{
				ProductID: in.ProductID,
				ItemName:  strings.TrimSpace(in.ItemName),
				Quantity:  in.Quantity,
				Unit:      strings.TrimSpace(in.Unit),
				Cost:      in.Cost,
				Amount:    pricing.LineAmount(in.Quantity, in.Cost),
			}
			if in.ProductID != nil {
				p, ok := products[*in.ProductID]
				if !ok {
					return fmt.Errorf("product %d: %w", *in.ProductID, store.ErrNotFound)
				}
				if line.ItemName == "" {
					line.ItemName = p.Name
				}
				if line.Unit == "" {
					line.Unit = p.Unit
				}
			}
			if line.Unit == "" {
				line.Unit = "pcs"
			}
			total = total.Add(line.Amount)
			purchase.Lines = append(purchase.Lines, line)
		}
		purchase.TotalAmount = total
		purchase.Status = purchaseStatus(total, purchase.PaidAmount)

		number, err := s.NextPurchaseNumber(ctx, tx)
		if err != nil {
			return err
		}
		purchase.Number = number

		saved, err := tx.CreatePurchase(ctx, purchase)
		if err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}

		for _, line := range saved.Lines {
			if line.ProductID == nil {
				continue
			}
			if err := tx.CreateStockMovement(ctx, domain.StockMovement{
				ProductID:  *line.ProductID,
				Date:       day,
				Quantity:   line.Quantity,
				Type:       domain.StockMovementStockIn,
				Reference:  saved.Number,
				RecordedBy: actorName(ctx),
			}); err != nil {
				return fmt.Errorf("record stock in: %w", err)
			}
		}
		created = *saved
		return nil
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.logAudit(ctx, "purchase_create", "purchase", created.Number,
		fmt.Sprintf("supplier=%s,total=%s,paid=%s", created.SupplierName, created.TotalAmount.StringFixed(2), created.PaidAmount.StringFixed(2)))
	return created, nil
}

func (s *Service) resolveSupplier(ctx context.Context, tx store.Session, req domain.PurchaseCreateRequest, name string) (domain.Supplier, error) {
	if req.SupplierID != nil {
		sup, err := tx.GetSupplier(ctx, *req.SupplierID)
		if err != nil {
			return domain.Supplier{}, wrapNotFound("supplier", *req.SupplierID, err)
		}
		return *sup, nil
	}

	sup, err := tx.FindSupplierByName(ctx, name)
	if err == nil {
		return *sup, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Supplier{}, err
	}

	sup, err = tx.CreateSupplier(ctx, domain.Supplier{
		Name:          name,
		Address:       strings.TrimSpace(req.SupplierAddress),
		ContactNumber: domain.NormalizeContact(req.ContactNumber, s.contactRegion),
		Active:        true,
	})
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("create supplier %q: %w", name, err)
	}
	return *sup, nil
}

func (s *Service) ListPurchases(ctx context.Context, date string, status string) (domain.PurchaseList, error) {
	filter := store.PurchaseFilter{Status: strings.TrimSpace(status)}
	list := domain.PurchaseList{Status: filter.Status}
	if strings.TrimSpace(date) != "" {
		day, err := s.parseDay(date)
		if err != nil {
			return domain.PurchaseList{}, err
		}
		filter.Day = &day
		list.Date = day.Format(pricing.DateLayout)
	}
	switch filter.Status {
	case "", domain.StatusUnpaid, domain.StatusPartial, domain.StatusPaid:
	default:
		return domain.PurchaseList{}, invalid("status must be one of Unpaid, Partial, Paid")
	}

	purchases, err := s.repo.ListPurchases(ctx, filter)
	if err != nil {
		return domain.PurchaseList{}, err
	}

	list.Purchases = purchases
	list.GrandTotal = decimal.Zero
	list.TotalPaid = decimal.Zero
	for _, p := range purchases {
		list.GrandTotal = list.GrandTotal.Add(p.TotalAmount)
		list.TotalPaid = list.TotalPaid.Add(p.PaidAmount)
	}
	list.TotalBalance = list.GrandTotal.Sub(list.TotalPaid)
	return list, nil
}

// AddPurchasePayment records a payment to the supplier and moves the
// purchase to Partial or Paid.
func (s *Service) AddPurchasePayment(ctx context.Context, purchaseID int64, req domain.PurchasePaymentRequest) (domain.Purchase, error) {
	problems := make([]string, 0)
	if !req.Amount.IsPositive() {
		problems = append(problems, "amount must be greater than 0")
	}
	if !domain.IsPaymentMethod(req.Method) {
		problems = append(problems, "method must be one of Cash, GCash, BankTransfer, Check")
	}
	if len(problems) > 0 {
		return domain.Purchase{}, invalid(problems...)
	}

	return s.settlePurchase(ctx, purchaseID, "purchase_payment", func(p *domain.Purchase) (decimal.Decimal, error) {
		return req.Amount, nil
	}, req.Method, strings.TrimSpace(req.ReferenceNo))
}

// MarkPurchasePaid pays off the remaining balance in cash.
func (s *Service) MarkPurchasePaid(ctx context.Context, purchaseID int64) (domain.Purchase, error) {
	return s.settlePurchase(ctx, purchaseID, "purchase_mark_paid", func(p *domain.Purchase) (decimal.Decimal, error) {
		if p.Status == domain.StatusPaid {
			return decimal.Zero, fmt.Errorf("purchase %s already paid: %w", p.Number, store.ErrInvalidState)
		}
		return p.Balance(), nil
	}, domain.PaymentCash, "")
}

func (s *Service) settlePurchase(ctx context.Context, purchaseID int64, action string, amountFor func(p *domain.Purchase) (decimal.Decimal, error), method string, reference string) (domain.Purchase, error) {
	var updated domain.Purchase
	var paidNow decimal.Decimal
	err := s.repo.WithinTx(ctx, func(tx store.Session) error {
		p, err := tx.GetPurchase(ctx, purchaseID)
		if err != nil {
			return wrapNotFound("purchase", purchaseID, err)
		}
		amount, err := amountFor(p)
		if err != nil {
			return err
		}
		paidNow = amount

		if amount.IsPositive() {
			payment, err := tx.CreatePurchasePayment(ctx, domain.PurchasePayment{
				PurchaseID:  p.ID,
				Date:        pricing.Day(s.now()),
				Amount:      amount,
				Method:      method,
				ReferenceNo: reference,
				RecordedBy:  actorName(ctx),
			})
			if err != nil {
				return err
			}
			p.Payments = append(p.Payments, *payment)
		}

		p.PaidAmount = p.PaidAmount.Add(amount)
		p.Status = purchaseStatus(p.TotalAmount, p.PaidAmount)
		if err := tx.UpdatePurchase(ctx, *p); err != nil {
			return err
		}
		updated = *p
		return nil
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.logAudit(ctx, action, "purchase", updated.Number,
		fmt.Sprintf("amount=%s,status=%s,paid_at=%s", paidNow.StringFixed(2), updated.Status, s.now().Format(time.RFC3339)))
	return updated, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
