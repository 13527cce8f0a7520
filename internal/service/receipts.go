package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
)

// ListReceiptsByStatus returns the day's receipts in one status, ordered by
// outlet name.
func (s *Service) ListReceiptsByStatus(ctx context.Context, date string, status string) (domain.ReceiptList, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.ReceiptList{}, err
	}
	status = strings.TrimSpace(status)
	switch status {
	case domain.StatusUnpaid, domain.StatusPartial, domain.StatusPaid, domain.StatusVoid:
	case "":
		status = domain.StatusUnpaid
	default:
		return domain.ReceiptList{}, invalid("status must be one of Unpaid, Partial, Paid, Void")
	}

	receipts, err := s.repo.ListReceipts(ctx, store.ReceiptFilter{Day: day, Status: status})
	if err != nil {
		return domain.ReceiptList{}, err
	}

	total := decimal.Zero
	for _, r := range receipts {
		total = total.Add(r.TotalAmount)
	}
	return domain.ReceiptList{
		Date:       day.Format(pricing.DateLayout),
		Status:     status,
		Receipts:   receipts,
		GrandTotal: total,
	}, nil
}

func (s *Service) GetReceipt(ctx context.Context, id int64) (domain.Receipt, error) {
	r, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return domain.Receipt{}, wrapNotFound("receipt", id, err)
	}
	return *r, nil
}

// MarkReceiptPaid settles an unpaid receipt in full with a cash payment.
func (s *Service) MarkReceiptPaid(ctx context.Context, id int64) (domain.Receipt, error) {
	var paid domain.Receipt
	err := s.repo.WithinTx(ctx, func(tx store.Session) error {
		r, err := tx.GetReceipt(ctx, id)
		if err != nil {
			return wrapNotFound("receipt", id, err)
		}
		if r.Status != domain.StatusUnpaid {
			return fmt.Errorf("receipt %s is %s: %w", r.Number, r.Status, store.ErrInvalidState)
		}

		r.Status = domain.StatusPaid
		r.PaidAmount = r.TotalAmount
		if err := tx.UpdateReceipt(ctx, *r); err != nil {
			return err
		}
		payment, err := tx.CreatePayment(ctx, domain.Payment{
			ReceiptID:  r.ID,
			Date:       pricing.Day(s.now()),
			Amount:     r.TotalAmount,
			Method:     domain.PaymentCash,
			RecordedBy: actorName(ctx),
		})
		if err != nil {
			return err
		}
		r.Payments = append(r.Payments, *payment)
		paid = *r
		return nil
	})
	if err != nil {
		return domain.Receipt{}, err
	}

	s.invalidateMatrix(ctx, paid.Date)
	s.logAudit(ctx, "receipt_mark_paid", "receipt", paid.Number, fmt.Sprintf("amount=%s", paid.TotalAmount.StringFixed(2)))
	return paid, nil
}

// VoidReceipt removes a receipt from every matrix and order computation. The
// caller is responsible for the manager PIN check.
func (s *Service) VoidReceipt(ctx context.Context, id int64, reason string) (domain.Receipt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Receipt{}, invalid("reason is required")
	}

	var voided domain.Receipt
	err := s.repo.WithinTx(ctx, func(tx store.Session) error {
		r, err := tx.GetReceipt(ctx, id)
		if err != nil {
			return wrapNotFound("receipt", id, err)
		}
		if r.Status == domain.StatusVoid {
			return fmt.Errorf("receipt %s already void: %w", r.Number, store.ErrInvalidState)
		}
		r.Status = domain.StatusVoid
		if err := tx.UpdateReceipt(ctx, *r); err != nil {
			return err
		}
		voided = *r
		return nil
	})
	if err != nil {
		return domain.Receipt{}, err
	}

	s.invalidateMatrix(ctx, voided.Date)
	s.logAudit(ctx, "receipt_void", "receipt", voided.Number, reason)
	return voided, nil
}
