package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/store"
)

const purchaseColumns = `id, number, purchase_date, supplier_id, supplier_name, supplier_address, contact_number,
	total_amount, paid_amount, status, notes, created_by`

func scanPurchase(row rowScanner) (domain.Purchase, error) {
	var (
		p          domain.Purchase
		supplierID sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Number, &p.Date, &supplierID, &p.SupplierName, &p.SupplierAddress, &p.ContactNumber,
		&p.TotalAmount, &p.PaidAmount, &p.Status, &p.Notes, &p.CreatedBy)
	if err != nil {
		return p, err
	}
	p.Date = dayOf(p.Date)
	p.SupplierID = int64Ptr(supplierID)
	return p, nil
}

func (s session) CreatePurchase(ctx context.Context, p domain.Purchase) (*domain.Purchase, error) {
	if strings.TrimSpace(p.Number) == "" || len(p.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	p.Date = dayOf(p.Date)

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO purchases (
			number, purchase_date, supplier_id, supplier_name, supplier_address, contact_number,
			total_amount, paid_amount, status, notes, created_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, p.Number, p.Date, nullInt64(p.SupplierID), p.SupplierName, p.SupplierAddress, p.ContactNumber,
		p.TotalAmount, p.PaidAmount, p.Status, p.Notes, p.CreatedBy).Scan(&p.ID)
	if err != nil {
		return nil, mapWriteErr(err)
	}

	lines := make([]domain.PurchaseLine, 0, len(p.Lines))
	for _, line := range p.Lines {
		line.PurchaseID = p.ID
		err := s.q.QueryRowContext(ctx, `
			INSERT INTO purchase_lines (purchase_id, product_id, item_name, quantity, unit, cost, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, line.PurchaseID, nullInt64(line.ProductID), line.ItemName, line.Quantity, line.Unit, line.Cost, line.Amount).Scan(&line.ID)
		if err != nil {
			return nil, mapWriteErr(err)
		}
		lines = append(lines, line)
	}
	p.Lines = lines
	p.Payments = []domain.PurchasePayment{}
	return &p, nil
}

func (s session) purchaseLines(ctx context.Context, ids []int64) (map[int64][]domain.PurchaseLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, purchase_id, product_id, item_name, quantity, unit, cost, amount
		FROM purchase_lines
		WHERE purchase_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[int64][]domain.PurchaseLine, len(ids))
	for rows.Next() {
		var (
			line      domain.PurchaseLine
			productID sql.NullInt64
		)
		if err := rows.Scan(&line.ID, &line.PurchaseID, &productID, &line.ItemName, &line.Quantity, &line.Unit, &line.Cost, &line.Amount); err != nil {
			return nil, err
		}
		line.ProductID = int64Ptr(productID)
		grouped[line.PurchaseID] = append(grouped[line.PurchaseID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grouped, nil
}

func (s session) GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	p, err := scanPurchase(s.q.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}

	lines, err := s.purchaseLines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p.Lines = lines[id]

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, purchase_id, payment_date, amount, method, reference_no, recorded_by
		FROM purchase_payments
		WHERE purchase_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	p.Payments = make([]domain.PurchasePayment, 0, 2)
	for rows.Next() {
		var pay domain.PurchasePayment
		if err := rows.Scan(&pay.ID, &pay.PurchaseID, &pay.Date, &pay.Amount, &pay.Method, &pay.ReferenceNo, &pay.RecordedBy); err != nil {
			return nil, err
		}
		pay.Date = dayOf(pay.Date)
		p.Payments = append(p.Payments, pay)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s session) ListPurchases(ctx context.Context, filter store.PurchaseFilter) ([]domain.Purchase, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	var day *time.Time
	if filter.Day != nil {
		d := dayOf(*filter.Day)
		day = &d
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE ($1::date IS NULL OR purchase_date = $1::date)
			AND ($2 = '' OR status = $2)
		ORDER BY purchase_date DESC, id DESC
		LIMIT $3
	`, day, filter.Status, limit)
	if err != nil {
		return nil, err
	}

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(purchases) == 0 {
		return purchases, nil
	}
	ids := make([]int64, 0, len(purchases))
	for _, p := range purchases {
		ids = append(ids, p.ID)
	}
	lines, err := s.purchaseLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range purchases {
		purchases[i].Lines = lines[purchases[i].ID]
	}
	return purchases, nil
}

func (s session) UpdatePurchase(ctx context.Context, p domain.Purchase) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE purchases
		SET status = $2, paid_amount = $3, total_amount = $4
		WHERE id = $1
	`, p.ID, p.Status, p.PaidAmount, p.TotalAmount)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func (s session) CreatePurchasePayment(ctx context.Context, p domain.PurchasePayment) (*domain.PurchasePayment, error) {
	p.Date = dayOf(p.Date)
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO purchase_payments (purchase_id, payment_date, amount, method, reference_no, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, p.PurchaseID, p.Date, p.Amount, p.Method, p.ReferenceNo, p.RecordedBy).Scan(&p.ID)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &p, nil
}

func (s session) CreateStockMovement(ctx context.Context, m domain.StockMovement) error {
	if m.ProductID <= 0 {
		return store.ErrInvalidInput
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO stock_movements (product_id, movement_date, quantity, type, reference, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ProductID, dayOf(m.Date), m.Quantity, m.Type, m.Reference, m.RecordedBy)
	return mapWriteErr(err)
}
