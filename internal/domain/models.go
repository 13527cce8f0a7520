package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Markup      decimal.Decimal `json:"markup"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Active      bool            `json:"active"`
}

// WeeklyPriceOverride layers over a product's master pricing for an inclusive
// date range. Ranges may overlap in stored data.
type WeeklyPriceOverride struct {
	ID                  int64               `json:"id"`
	ProductID           int64               `json:"product_id"`
	EffectiveFrom       time.Time           `json:"effective_from"`
	EffectiveTo         time.Time           `json:"effective_to"`
	CostOverride        decimal.NullDecimal `json:"cost_override"`
	DeliveryFeeOverride decimal.NullDecimal `json:"delivery_fee_override"`
	Markup              decimal.Decimal     `json:"markup"`
	BasePrice           decimal.Decimal     `json:"base_price"`
	DeliveryPrice       decimal.Decimal     `json:"delivery_price"`
}

// Covers reports whether day falls inside the override's range.
func (w WeeklyPriceOverride) Covers(day time.Time) bool {
	return !w.EffectiveFrom.After(day) && !w.EffectiveTo.Before(day)
}

type PriceResult struct {
	ProductID   int64           `json:"product_id"`
	Cost        decimal.Decimal `json:"cost"`
	Markup      decimal.Decimal `json:"markup"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Price       decimal.Decimal `json:"price"`
	OverrideID  int64           `json:"override_id,omitempty"`
}

type Outlet struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
	ContactNumber string `json:"contact_number"`
	Active        bool   `json:"active"`
	GroupName     string `json:"group_name"`
	SubLabel      string `json:"sub_label,omitempty"`
}

type Receipt struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	Date          time.Time       `json:"date"`
	OutletID      *int64          `json:"outlet_id,omitempty"`
	OutletName    string          `json:"outlet_name"`
	OutletAddress string          `json:"outlet_address,omitempty"`
	ContactNumber string          `json:"contact_number,omitempty"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Lines         []ReceiptLine   `json:"lines"`
	Payments      []Payment       `json:"payments,omitempty"`
}

type ReceiptLine struct {
	ID                int64           `json:"id"`
	ReceiptID         int64           `json:"receipt_id"`
	ProductID         *int64          `json:"product_id,omitempty"`
	ItemName          string          `json:"item_name"`
	Quantity          int             `json:"quantity"`
	Unit              string          `json:"unit"`
	Price             decimal.Decimal `json:"price"`
	CostPriceSnapshot decimal.Decimal `json:"cost_price_snapshot"`
	Amount            decimal.Decimal `json:"amount"`
}

type Payment struct {
	ID          int64           `json:"id"`
	ReceiptID   int64           `json:"receipt_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	ReferenceNo string          `json:"reference_no,omitempty"`
	RecordedBy  string          `json:"recorded_by,omitempty"`
}

type Supplier struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
	Address       string `json:"address,omitempty"`
	Active        bool   `json:"active"`
}

type Purchase struct {
	ID              int64             `json:"id"`
	Number          string            `json:"number"`
	Date            time.Time         `json:"date"`
	SupplierID      *int64            `json:"supplier_id,omitempty"`
	SupplierName    string            `json:"supplier_name"`
	SupplierAddress string            `json:"supplier_address,omitempty"`
	ContactNumber   string            `json:"contact_number,omitempty"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	PaidAmount      decimal.Decimal   `json:"paid_amount"`
	Status          string            `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	CreatedBy       string            `json:"created_by,omitempty"`
	Lines           []PurchaseLine    `json:"lines"`
	Payments        []PurchasePayment `json:"payments,omitempty"`
}

// Balance is the amount still owed to the supplier.
func (p Purchase) Balance() decimal.Decimal {
	return p.TotalAmount.Sub(p.PaidAmount)
}

type PurchaseLine struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	ProductID  *int64          `json:"product_id,omitempty"`
	ItemName   string          `json:"item_name"`
	Quantity   int             `json:"quantity"`
	Unit       string          `json:"unit"`
	Cost       decimal.Decimal `json:"cost"`
	Amount     decimal.Decimal `json:"amount"`
}

type PurchasePayment struct {
	ID          int64           `json:"id"`
	PurchaseID  int64           `json:"purchase_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	ReferenceNo string          `json:"reference_no,omitempty"`
	RecordedBy  string          `json:"recorded_by,omitempty"`
}

type StockMovement struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Date       time.Time `json:"date"`
	Quantity   int       `json:"quantity"`
	Type       string    `json:"type"`
	Reference  string    `json:"reference"`
	RecordedBy string    `json:"recorded_by,omitempty"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type Actor struct {
	Username string
	Role     string
}

const (
	ReceiptTypeSale     = "Sale"
	ReceiptTypeDelivery = "Delivery"
)

const (
	StatusUnpaid  = "Unpaid"
	StatusPartial = "Partial"
	StatusPaid    = "Paid"
	StatusVoid    = "Void"
)

const (
	PaymentCash         = "Cash"
	PaymentGCash        = "GCash"
	PaymentBankTransfer = "BankTransfer"
	PaymentCheck        = "Check"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	DefaultOutletGroup = "EIGHT2EIGHT OUTLETS"
	TasteOutletGroup   = "Taste 8 outlets"
)

const StockMovementStockIn = "StockIn"

// MatrixGroups are the outlet groups rendered on the bulk order matrix.
var MatrixGroups = []string{DefaultOutletGroup, TasteOutletGroup}

// IsPaymentMethod reports whether method is one of the accepted payment methods.
func IsPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentGCash, PaymentBankTransfer, PaymentCheck:
		return true
	}
	return false
}
