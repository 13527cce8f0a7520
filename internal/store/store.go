package store

import (
	"context"
	"errors"
	"time"

	"hazelinvoice/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)

const (
	SequenceReceipt  = "receipt"
	SequencePurchase = "purchase"
)

// ReceiptFilter selects receipts dated Day. Void receipts are excluded unless
// Status asks for them.
type ReceiptFilter struct {
	Day    time.Time
	Status string
}

// PurchaseFilter selects purchases. A nil Day matches every date.
type PurchaseFilter struct {
	Day    *time.Time
	Status string
	Limit  int
}

// Session is a unit of work. Every call made through the same Session sees
// the same transactional state.
type Session interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)

	ListOutlets(ctx context.Context, activeOnly bool) ([]domain.Outlet, error)
	ListOutletsInGroups(ctx context.Context, groups []string) ([]domain.Outlet, error)
	GetOutletsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Outlet, error)
	// AssignDefaultGroup sets group on active outlets whose group is empty.
	AssignDefaultGroup(ctx context.Context, group string) (int, error)

	// ListOverridesCovering returns overrides whose range contains day. An
	// empty productIDs matches every product.
	ListOverridesCovering(ctx context.Context, day time.Time, productIDs []int64) ([]domain.WeeklyPriceOverride, error)
	ListOverridesStartingOn(ctx context.Context, day time.Time) ([]domain.WeeklyPriceOverride, error)
	CreateOverride(ctx context.Context, w domain.WeeklyPriceOverride) (*domain.WeeklyPriceOverride, error)
	UpdateOverride(ctx context.Context, w domain.WeeklyPriceOverride) error
	DeleteOverrides(ctx context.Context, ids []int64) error

	// ListReceipts returns receipts with their lines.
	ListReceipts(ctx context.Context, filter ReceiptFilter) ([]domain.Receipt, error)
	// GetReceipt returns a receipt with lines and payments.
	GetReceipt(ctx context.Context, id int64) (*domain.Receipt, error)
	// CreateReceipt stores the receipt header. Lines are written separately.
	CreateReceipt(ctx context.Context, r domain.Receipt) (*domain.Receipt, error)
	UpdateReceipt(ctx context.Context, r domain.Receipt) error
	CreateReceiptLine(ctx context.Context, line domain.ReceiptLine) (*domain.ReceiptLine, error)
	UpdateReceiptLine(ctx context.Context, line domain.ReceiptLine) error
	DeleteReceiptLine(ctx context.Context, id int64) error
	CreatePayment(ctx context.Context, p domain.Payment) (*domain.Payment, error)

	// NextSequenceValue increments the (kind, year) counter and returns the new
	// value. A counter below floor is raised to floor first.
	NextSequenceValue(ctx context.Context, kind string, year int, floor int64) (int64, error)

	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	FindSupplierByName(ctx context.Context, name string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, s domain.Supplier) (*domain.Supplier, error)

	// CreatePurchase stores the purchase with its lines.
	CreatePurchase(ctx context.Context, p domain.Purchase) (*domain.Purchase, error)
	GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]domain.Purchase, error)
	UpdatePurchase(ctx context.Context, p domain.Purchase) error
	CreatePurchasePayment(ctx context.Context, p domain.PurchasePayment) (*domain.PurchasePayment, error)
	CreateStockMovement(ctx context.Context, m domain.StockMovement) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Repository is a Session that can also open transactional sessions.
type Repository interface {
	Session
	// WithinTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Session) error) error
}
