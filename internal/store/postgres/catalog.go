package postgres

import (
	"context"
	"strings"
	"time"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/store"
)

const productColumns = `id, sku, name, category, unit, unit_cost, markup, delivery_fee, active`

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Unit, &p.UnitCost, &p.Markup, &p.DeliveryFee, &p.Active)
	return p, err
}

func (s session) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s session) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const outletColumns = `id, name, address, contact_person, contact_number, active, group_name, sub_label`

func (s session) queryOutlets(ctx context.Context, query string, args ...any) ([]domain.Outlet, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outlets := make([]domain.Outlet, 0, 32)
	for rows.Next() {
		var o domain.Outlet
		if err := rows.Scan(&o.ID, &o.Name, &o.Address, &o.ContactPerson, &o.ContactNumber, &o.Active, &o.GroupName, &o.SubLabel); err != nil {
			return nil, err
		}
		outlets = append(outlets, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outlets, nil
}

func (s session) ListOutlets(ctx context.Context, activeOnly bool) ([]domain.Outlet, error) {
	return s.queryOutlets(ctx, `
		SELECT `+outletColumns+`
		FROM outlets
		WHERE ($1::boolean = false OR active = true)
		ORDER BY name, id
	`, activeOnly)
}

func (s session) ListOutletsInGroups(ctx context.Context, groups []string) ([]domain.Outlet, error) {
	return s.queryOutlets(ctx, `
		SELECT `+outletColumns+`
		FROM outlets
		WHERE active = true AND group_name = ANY($1)
		ORDER BY name, id
	`, groups)
}

func (s session) GetOutletsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Outlet, error) {
	result := make(map[int64]domain.Outlet, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	outlets, err := s.queryOutlets(ctx, `
		SELECT `+outletColumns+`
		FROM outlets
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range outlets {
		result[o.ID] = o
	}
	return result, nil
}

func (s session) AssignDefaultGroup(ctx context.Context, group string) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE outlets
		SET group_name = $1
		WHERE active = true AND btrim(group_name) = ''
	`, group)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const overrideColumns = `id, product_id, effective_from, effective_to, cost_override, delivery_fee_override, markup, base_price, delivery_price`

func (s session) queryOverrides(ctx context.Context, query string, args ...any) ([]domain.WeeklyPriceOverride, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.WeeklyPriceOverride, 0, 32)
	for rows.Next() {
		var w domain.WeeklyPriceOverride
		if err := rows.Scan(&w.ID, &w.ProductID, &w.EffectiveFrom, &w.EffectiveTo, &w.CostOverride, &w.DeliveryFeeOverride, &w.Markup, &w.BasePrice, &w.DeliveryPrice); err != nil {
			return nil, err
		}
		w.EffectiveFrom = dayOf(w.EffectiveFrom)
		w.EffectiveTo = dayOf(w.EffectiveTo)
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s session) ListOverridesCovering(ctx context.Context, day time.Time, productIDs []int64) ([]domain.WeeklyPriceOverride, error) {
	if len(productIDs) == 0 {
		return s.queryOverrides(ctx, `
			SELECT `+overrideColumns+`
			FROM weekly_price_overrides
			WHERE effective_from <= $1 AND effective_to >= $1
			ORDER BY id
		`, dayOf(day))
	}
	return s.queryOverrides(ctx, `
		SELECT `+overrideColumns+`
		FROM weekly_price_overrides
		WHERE effective_from <= $1 AND effective_to >= $1 AND product_id = ANY($2)
		ORDER BY id
	`, dayOf(day), productIDs)
}

func (s session) ListOverridesStartingOn(ctx context.Context, day time.Time) ([]domain.WeeklyPriceOverride, error) {
	return s.queryOverrides(ctx, `
		SELECT `+overrideColumns+`
		FROM weekly_price_overrides
		WHERE effective_from = $1
		ORDER BY id
	`, dayOf(day))
}

func (s session) CreateOverride(ctx context.Context, w domain.WeeklyPriceOverride) (*domain.WeeklyPriceOverride, error) {
	if w.ProductID <= 0 || w.EffectiveTo.Before(w.EffectiveFrom) {
		return nil, store.ErrInvalidInput
	}
	w.EffectiveFrom = dayOf(w.EffectiveFrom)
	w.EffectiveTo = dayOf(w.EffectiveTo)

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO weekly_price_overrides (
			product_id, effective_from, effective_to, cost_override, delivery_fee_override,
			markup, base_price, delivery_price
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, w.ProductID, w.EffectiveFrom, w.EffectiveTo, w.CostOverride, w.DeliveryFeeOverride,
		w.Markup, w.BasePrice, w.DeliveryPrice).Scan(&w.ID)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &w, nil
}

func (s session) UpdateOverride(ctx context.Context, w domain.WeeklyPriceOverride) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE weekly_price_overrides
		SET effective_from = $2, effective_to = $3, cost_override = $4, delivery_fee_override = $5,
			markup = $6, base_price = $7, delivery_price = $8
		WHERE id = $1
	`, w.ID, dayOf(w.EffectiveFrom), dayOf(w.EffectiveTo), w.CostOverride, w.DeliveryFeeOverride,
		w.Markup, w.BasePrice, w.DeliveryPrice)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func (s session) DeleteOverrides(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.q.ExecContext(ctx, `DELETE FROM weekly_price_overrides WHERE id = ANY($1)`, ids)
	return err
}

func (s session) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	return s.scanSupplier(s.q.QueryRowContext(ctx, `
		SELECT id, name, contact_person, contact_number, address, active
		FROM suppliers
		WHERE id = $1
	`, id))
}

func (s session) FindSupplierByName(ctx context.Context, name string) (*domain.Supplier, error) {
	return s.scanSupplier(s.q.QueryRowContext(ctx, `
		SELECT id, name, contact_person, contact_number, address, active
		FROM suppliers
		WHERE lower(btrim(name)) = lower($1)
		ORDER BY id
		LIMIT 1
	`, strings.TrimSpace(name)))
}

func (s session) scanSupplier(row rowScanner) (*domain.Supplier, error) {
	var sup domain.Supplier
	if err := row.Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.ContactNumber, &sup.Address, &sup.Active); err != nil {
		return nil, notFound(err)
	}
	return &sup, nil
}

func (s session) CreateSupplier(ctx context.Context, sup domain.Supplier) (*domain.Supplier, error) {
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.Name == "" {
		return nil, store.ErrInvalidInput
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO suppliers (name, contact_person, contact_number, address, active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, sup.Name, sup.ContactPerson, sup.ContactNumber, sup.Address, sup.Active).Scan(&sup.ID)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &sup, nil
}
