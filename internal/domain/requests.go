package domain

import "github.com/shopspring/decimal"

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type MatrixQuery struct {
	Date        string `json:"date"`
	Page        int    `json:"page"`
	ProductPage int    `json:"product_page"`
	Print       bool   `json:"print"`
}

type MatrixCellInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	OutletID  int64           `json:"outlet_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type MatrixSaveRequest struct {
	Date   string                    `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Cells  []MatrixCellInput         `json:"cells" validate:"dive"`
	Prices map[int64]decimal.Decimal `json:"prices,omitempty"`
}

type MatrixSaveResult struct {
	Date            string   `json:"date"`
	ReceiptsCreated []string `json:"receipts_created"`
	LinesWritten    int      `json:"lines_written"`
	LinesRemoved    int      `json:"lines_removed"`
	PricesChanged   int      `json:"prices_changed"`
	OutletsSkipped  int      `json:"outlets_skipped"`
}

type MatrixOutlet struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SubLabel  string `json:"sub_label,omitempty"`
	HasOrders bool   `json:"has_orders"`
}

type MatrixProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Cost     decimal.Decimal `json:"cost"`
	Markup   decimal.Decimal `json:"markup"`
	Price    decimal.Decimal `json:"price"`
	TotalQty decimal.Decimal `json:"total_qty"`
	Status   string          `json:"status"`
}

type MatrixCell struct {
	ProductID int64           `json:"product_id"`
	OutletID  int64           `json:"outlet_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    string          `json:"status"`
}

type MatrixView struct {
	Date              string          `json:"date"`
	Page              int             `json:"page"`
	PageSize          int             `json:"page_size"`
	TotalPages        int             `json:"total_pages"`
	TotalOutlets      int             `json:"total_outlets"`
	ProductPage       int             `json:"product_page"`
	ProductPageSize   int             `json:"product_page_size"`
	TotalProductPages int             `json:"total_product_pages"`
	TotalProducts     int             `json:"total_products"`
	Outlets           []MatrixOutlet  `json:"outlets"`
	Products          []MatrixProduct `json:"products"`
	Cells             []MatrixCell    `json:"cells"`
	GrandTotalQty     decimal.Decimal `json:"grand_total_qty"`
	GrandTotalAmount  decimal.Decimal `json:"grand_total_amount"`
}

type OutletOrderQuery struct {
	Date       string `json:"date"`
	OutletID   int64  `json:"outlet_id"`
	AllOutlets bool   `json:"all_outlets"`
}

type OutletOrderProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type OutletOrderView struct {
	Date             string               `json:"date"`
	AllOutlets       bool                 `json:"all_outlets"`
	SelectedOutletID int64                `json:"selected_outlet_id"`
	Outlets          []Outlet             `json:"outlets"`
	Products         []OutletOrderProduct `json:"products"`
}

type OutletOrderSaveRequest struct {
	Date       string                    `json:"date" validate:"omitempty,datetime=2006-01-02"`
	OutletID   int64                     `json:"outlet_id" validate:"required_without=AllOutlets"`
	AllOutlets bool                      `json:"all_outlets"`
	Quantities map[int64]decimal.Decimal `json:"quantities,omitempty"`
	Prices     map[int64]decimal.Decimal `json:"prices,omitempty"`
}

type OutletOrderSaveResult struct {
	Date          string `json:"date"`
	OutletID      int64  `json:"outlet_id,omitempty"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	LinesWritten  int    `json:"lines_written"`
	LinesRemoved  int    `json:"lines_removed"`
	PricesChanged int    `json:"prices_changed"`
}

type PriceVersusItem struct {
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Unit            string          `json:"unit"`
	Cost            decimal.Decimal `json:"cost"`
	Markup          decimal.Decimal `json:"markup"`
	HasWeeklyRecord bool            `json:"has_weekly_record"`
}

type PriceVersusView struct {
	TargetDate string            `json:"target_date"`
	WeekStart  string            `json:"week_start"`
	WeekEnd    string            `json:"week_end"`
	Items      []PriceVersusItem `json:"items"`
}

type PriceVersusInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Markup    decimal.Decimal `json:"markup"`
}

type PriceVersusSaveRequest struct {
	TargetDate string             `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	Items      []PriceVersusInput `json:"items" validate:"dive"`
}

type PriceSaveResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted,omitempty"`
}

type ReceiptList struct {
	Date       string          `json:"date"`
	Status     string          `json:"status"`
	Receipts   []Receipt       `json:"receipts"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type VoidReceiptRequest struct {
	Reason     string `json:"reason" validate:"required,max=200"`
	ManagerPIN string `json:"manager_pin" validate:"required"`
}

type PurchaseLineInput struct {
	ProductID *int64          `json:"product_id,omitempty"`
	ItemName  string          `json:"item_name" validate:"max=120"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit" validate:"max=20"`
	Cost      decimal.Decimal `json:"cost"`
}

type PurchaseCreateRequest struct {
	Date            string              `json:"date" validate:"omitempty,datetime=2006-01-02"`
	SupplierID      *int64              `json:"supplier_id,omitempty"`
	SupplierName    string              `json:"supplier_name" validate:"max=120"`
	SupplierAddress string              `json:"supplier_address" validate:"max=200"`
	ContactNumber   string              `json:"contact_number" validate:"max=50"`
	PaidAmount      decimal.Decimal     `json:"paid_amount"`
	Notes           string              `json:"notes" validate:"max=200"`
	Lines           []PurchaseLineInput `json:"lines" validate:"dive"`
}

type PurchasePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,oneof=Cash GCash BankTransfer Check"`
	ReferenceNo string          `json:"reference_no" validate:"max=50"`
}

type PurchaseList struct {
	Date         string          `json:"date,omitempty"`
	Status       string          `json:"status"`
	Purchases    []Purchase      `json:"purchases"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}
