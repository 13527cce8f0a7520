package postgres

import (
	"context"
	"database/sql"
	"strings"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/store"
)

const receiptColumns = `id, number, receipt_date, outlet_id, outlet_name, outlet_address, contact_number,
	type, status, total_amount, paid_amount, created_by, created_at`

func scanReceipt(row rowScanner) (domain.Receipt, error) {
	var (
		r        domain.Receipt
		outletID sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Number, &r.Date, &outletID, &r.OutletName, &r.OutletAddress, &r.ContactNumber,
		&r.Type, &r.Status, &r.TotalAmount, &r.PaidAmount, &r.CreatedBy, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.Date = dayOf(r.Date)
	r.OutletID = int64Ptr(outletID)
	return r, nil
}

func (s session) ListReceipts(ctx context.Context, filter store.ReceiptFilter) ([]domain.Receipt, error) {
	day := dayOf(filter.Day)
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts
		WHERE receipt_date = $1
			AND ($2 = '' OR status = $2)
			AND ($2 = 'Void' OR status <> 'Void')
		ORDER BY lower(outlet_name), id
	`, day, filter.Status)
	if err != nil {
		return nil, err
	}

	receipts := make([]domain.Receipt, 0, 32)
	index := make(map[int64]int)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.Lines = []domain.ReceiptLine{}
		index[r.ID] = len(receipts)
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(receipts) == 0 {
		return receipts, nil
	}

	ids := make([]int64, 0, len(receipts))
	for _, r := range receipts {
		ids = append(ids, r.ID)
	}
	lines, err := s.queryLines(ctx, `
		SELECT id, receipt_id, product_id, item_name, quantity, unit, price, cost_price_snapshot, amount
		FROM receipt_lines
		WHERE receipt_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		i := index[line.ReceiptID]
		receipts[i].Lines = append(receipts[i].Lines, line)
	}
	return receipts, nil
}

func (s session) queryLines(ctx context.Context, query string, args ...any) ([]domain.ReceiptLine, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.ReceiptLine, 0, 64)
	for rows.Next() {
		var (
			line      domain.ReceiptLine
			productID sql.NullInt64
		)
		if err := rows.Scan(&line.ID, &line.ReceiptID, &productID, &line.ItemName, &line.Quantity, &line.Unit,
			&line.Price, &line.CostPriceSnapshot, &line.Amount); err != nil {
			return nil, err
		}
		line.ProductID = int64Ptr(productID)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s session) GetReceipt(ctx context.Context, id int64) (*domain.Receipt, error) {
	r, err := scanReceipt(s.q.QueryRowContext(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}

	r.Lines, err = s.queryLines(ctx, `
		SELECT id, receipt_id, product_id, item_name, quantity, unit, price, cost_price_snapshot, amount
		FROM receipt_lines
		WHERE receipt_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, receipt_id, payment_date, amount, method, reference_no, recorded_by
		FROM payments
		WHERE receipt_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	r.Payments = make([]domain.Payment, 0, 2)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.ReceiptID, &p.Date, &p.Amount, &p.Method, &p.ReferenceNo, &p.RecordedBy); err != nil {
			return nil, err
		}
		p.Date = dayOf(p.Date)
		r.Payments = append(r.Payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s session) CreateReceipt(ctx context.Context, r domain.Receipt) (*domain.Receipt, error) {
	if strings.TrimSpace(r.Number) == "" {
		return nil, store.ErrInvalidInput
	}
	r.Date = dayOf(r.Date)

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO receipts (
			number, receipt_date, outlet_id, outlet_name, outlet_address, contact_number,
			type, status, total_amount, paid_amount, created_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at
	`, r.Number, r.Date, nullInt64(r.OutletID), r.OutletName, r.OutletAddress, r.ContactNumber,
		r.Type, r.Status, r.TotalAmount, r.PaidAmount, r.CreatedBy).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	r.Lines = nil
	r.Payments = nil
	return &r, nil
}

func (s session) UpdateReceipt(ctx context.Context, r domain.Receipt) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE receipts
		SET status = $2, total_amount = $3, paid_amount = $4
		WHERE id = $1
	`, r.ID, r.Status, r.TotalAmount, r.PaidAmount)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func (s session) CreateReceiptLine(ctx context.Context, line domain.ReceiptLine) (*domain.ReceiptLine, error) {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO receipt_lines (receipt_id, product_id, item_name, quantity, unit, price, cost_price_snapshot, amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, line.ReceiptID, nullInt64(line.ProductID), line.ItemName, line.Quantity, line.Unit,
		line.Price, line.CostPriceSnapshot, line.Amount).Scan(&line.ID)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &line, nil
}

func (s session) UpdateReceiptLine(ctx context.Context, line domain.ReceiptLine) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE receipt_lines
		SET product_id = $2, item_name = $3, quantity = $4, unit = $5, price = $6,
			cost_price_snapshot = $7, amount = $8
		WHERE id = $1
	`, line.ID, nullInt64(line.ProductID), line.ItemName, line.Quantity, line.Unit,
		line.Price, line.CostPriceSnapshot, line.Amount)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func (s session) DeleteReceiptLine(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM receipt_lines WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s session) CreatePayment(ctx context.Context, p domain.Payment) (*domain.Payment, error) {
	p.Date = dayOf(p.Date)
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO payments (receipt_id, payment_date, amount, method, reference_no, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, p.ReceiptID, p.Date, p.Amount, p.Method, p.ReferenceNo, p.RecordedBy).Scan(&p.ID)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &p, nil
}

// NextSequenceValue locks the counter row for the rest of the transaction, so
// concurrent allocators queue behind it.
func (s session) NextSequenceValue(ctx context.Context, kind string, year int, floor int64) (int64, error) {
	if strings.TrimSpace(kind) == "" || year <= 0 {
		return 0, store.ErrInvalidInput
	}

	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO document_sequences (kind, year, last_value)
		VALUES ($1, $2, 0)
		ON CONFLICT (kind, year) DO NOTHING
	`, kind, year); err != nil {
		return 0, err
	}

	var current int64
	if err := s.q.QueryRowContext(ctx, `
		SELECT last_value
		FROM document_sequences
		WHERE kind = $1 AND year = $2
		FOR UPDATE
	`, kind, year).Scan(&current); err != nil {
		return 0, err
	}

	if current < floor {
		current = floor
	}
	current++

	if _, err := s.q.ExecContext(ctx, `
		UPDATE document_sequences
		SET last_value = $3
		WHERE kind = $1 AND year = $2
	`, kind, year, current); err != nil {
		return 0, err
	}
	return current, nil
}
