package service

import (
	"context"
	"fmt"

	"hazelinvoice/backend/internal/store"
)

const (
	receiptNumberFloor  = 5000
	purchaseNumberFloor = 0
)

// NextReceiptNumber allocates the next DR number of the current year on tx.
// It never opens a transaction of its own.
func (s *Service) NextReceiptNumber(ctx context.Context, tx store.Session) (string, error) {
	year := s.now().Year()
	n, err := tx.NextSequenceValue(ctx, store.SequenceReceipt, year, receiptNumberFloor)
	if err != nil {
		return "", fmt.Errorf("allocate receipt number: %w", err)
	}
	return fmt.Sprintf("DR-%d-%06d", year, n), nil
}

// NextPurchaseNumber allocates the next PO number of the current year on tx.
func (s *Service) NextPurchaseNumber(ctx context.Context, tx store.Session) (string, error) {
	year := s.now().Year()
	n, err := tx.NextSequenceValue(ctx, store.SequencePurchase, year, purchaseNumberFloor)
	if err != nil {
		return "", fmt.Errorf("allocate purchase number: %w", err)
	}
	return fmt.Sprintf("PO-%d-%06d", year, n), nil
}
