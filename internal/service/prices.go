package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/matrix"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
)

// priceBook is the pricing state of a set of products on one day, read once
// before any write of a save.
type priceBook struct {
	day      time.Time
	products map[int64]domain.Product
	selected map[int64]pricing.Selection
}

func loadPriceBook(ctx context.Context, tx store.Session, day time.Time, productIDs []int64) (priceBook, error) {
	book := priceBook{day: day}
	if len(productIDs) == 0 {
		book.products = map[int64]domain.Product{}
		book.selected = map[int64]pricing.Selection{}
		return book, nil
	}

	products, err := tx.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return book, fmt.Errorf("load products: %w", err)
	}
	overrides, err := tx.ListOverridesCovering(ctx, day, productIDs)
	if err != nil {
		return book, fmt.Errorf("load weekly prices: %w", err)
	}
	book.products = products
	book.selected = pricing.SelectByProduct(overrides, day)
	return book, nil
}

func (b priceBook) resolve(productID int64) (domain.PriceResult, bool) {
	p, ok := b.products[productID]
	if !ok {
		return domain.PriceResult{ProductID: productID}, false
	}
	return pricing.Resolve(p, b.selected[productID].Override), true
}

// linePrice returns the unit price and cost snapshot for a new or rewritten
// receipt line. A positive posted price wins over the resolved one.
func (b priceBook) linePrice(productID int64, posted decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	resolved, _ := b.resolve(productID)
	if posted.IsPositive() {
		return posted, resolved.Cost
	}
	return resolved.Price, resolved.Cost
}

type priceWrites struct {
	changed int
	deleted int
}

// applyPostedPrices turns posted prices into weekly override writes. Overrides
// that shadow the selected one for a posted product are removed first.
func applyPostedPrices(ctx context.Context, tx store.Session, book priceBook, prices map[int64]decimal.Decimal) (priceWrites, error) {
	var out priceWrites
	for _, productID := range sortedKeys(prices) {
		sel := book.selected[productID]
		if len(sel.Duplicates) > 0 {
			if err := tx.DeleteOverrides(ctx, sel.Duplicates); err != nil {
				return out, fmt.Errorf("drop duplicate weekly prices of product %d: %w", productID, err)
			}
			out.deleted += len(sel.Duplicates)
		}

		product, ok := book.products[productID]
		if !ok {
			continue
		}
		change, ok := pricing.PlanPriceChange(product, sel.Override, prices[productID], book.day)
		if !ok {
			continue
		}
		if change.Update {
			if err := tx.UpdateOverride(ctx, change.Override); err != nil {
				return out, fmt.Errorf("update weekly price %d: %w", change.Override.ID, err)
			}
		} else {
			if _, err := tx.CreateOverride(ctx, change.Override); err != nil {
				return out, fmt.Errorf("create weekly price for product %d: %w", productID, err)
			}
		}
		out.changed++
	}
	return out, nil
}

// ResolvePrice returns the effective price of a product on date.
func (s *Service) ResolvePrice(ctx context.Context, productID int64, date string) (domain.PriceResult, error) {
	if productID <= 0 {
		return domain.PriceResult{}, invalid("product_id is required")
	}
	day, err := s.parseDay(date)
	if err != nil {
		return domain.PriceResult{}, err
	}

	book, err := loadPriceBook(ctx, s.repo, day, []int64{productID})
	if err != nil {
		return domain.PriceResult{}, err
	}
	res, ok := book.resolve(productID)
	if !ok {
		return domain.PriceResult{}, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	return res, nil
}

func (s *Service) GetPriceVersus(ctx context.Context, date string) (domain.PriceVersusView, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.PriceVersusView{}, err
	}
	start, end := pricing.WeekOf(day)

	all, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.PriceVersusView{}, err
	}
	products := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if p.Active {
			products = append(products, p)
		}
	}
	matrix.SortProducts(products)

	overrides, err := s.repo.ListOverridesCovering(ctx, day, nil)
	if err != nil {
		return domain.PriceVersusView{}, err
	}
	selected := pricing.SelectByProduct(overrides, day)

	view := domain.PriceVersusView{
		TargetDate: day.Format(pricing.DateLayout),
		WeekStart:  start.Format(pricing.DateLayout),
		WeekEnd:    end.Format(pricing.DateLayout),
		Items:      make([]domain.PriceVersusItem, 0, len(products)),
	}
	for _, p := range products {
		item := domain.PriceVersusItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Unit:        p.Unit,
			Cost:        p.UnitCost,
			Markup:      p.Markup,
		}
		if w := selected[p.ID].Override; w != nil {
			item.HasWeeklyRecord = true
			switch {
			case !w.Markup.IsZero():
				item.Markup = w.Markup
			case w.DeliveryPrice.IsPositive():
				item.Markup = w.DeliveryPrice.Sub(p.UnitCost)
			}
		}
		view.Items = append(view.Items, item)
	}
	return view, nil
}

// SavePriceVersus sets each posted markup on top of the master cost for the
// week containing the target date.
func (s *Service) SavePriceVersus(ctx context.Context, req domain.PriceVersusSaveRequest) (domain.PriceSaveResult, error) {
	day, err := s.parseDay(req.TargetDate)
	if err != nil {
		return domain.PriceSaveResult{}, err
	}

	problems := make([]string, 0)
	ids := make([]int64, 0, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d]: product_id is required", i))
			continue
		}
		ids = append(ids, item.ProductID)
	}
	if len(problems) > 0 {
		return domain.PriceSaveResult{}, invalid(problems...)
	}
	if len(ids) == 0 {
		return domain.PriceSaveResult{}, nil
	}

	var result domain.PriceSaveResult
	err = s.repo.WithinTx(ctx, func(tx store.Session) error {
		result = domain.PriceSaveResult{}

		book, err := loadPriceBook(ctx, tx, day, ids)
		if err != nil {
			return err
		}
		start, end := pricing.WeekOf(day)

		for _, item := range req.Items {
			product, ok := book.products[item.ProductID]
			if !ok {
				continue
			}
			price := product.UnitCost.Add(item.Markup)

			if w := book.selected[item.ProductID].Override; w != nil {
				if w.Markup.Equal(item.Markup) && w.DeliveryPrice.Equal(price) {
					continue
				}
				next := *w
				next.Markup = item.Markup
				next.BasePrice = price
				next.DeliveryPrice = price
				if err := tx.UpdateOverride(ctx, next); err != nil {
					return fmt.Errorf("update weekly price %d: %w", w.ID, err)
				}
				book.selected[item.ProductID] = pricing.Selection{Override: &next}
				result.Updated++
				continue
			}

			created, err := tx.CreateOverride(ctx, domain.WeeklyPriceOverride{
				ProductID:     item.ProductID,
				EffectiveFrom: start,
				EffectiveTo:   end,
				Markup:        item.Markup,
				BasePrice:     price,
				DeliveryPrice: price,
			})
			if err != nil {
				return fmt.Errorf("create weekly price for product %d: %w", item.ProductID, err)
			}
			book.selected[item.ProductID] = pricing.Selection{Override: created}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return domain.PriceSaveResult{}, err
	}

	s.invalidateWeek(ctx, day)
	s.logAudit(ctx, "price_versus_save", "weekly_price", day.Format(pricing.DateLayout),
		fmt.Sprintf("created=%d,updated=%d", result.Created, result.Updated))
	return result, nil
}

// CloneLastWeek copies last week's overrides into the current week. Products
// that already have an override starting this Monday are left alone.
func (s *Service) CloneLastWeek(ctx context.Context) (domain.PriceSaveResult, error) {
	thisStart, thisEnd := pricing.WeekOf(s.now())
	lastStart := thisStart.AddDate(0, 0, -7)

	var result domain.PriceSaveResult
	err := s.repo.WithinTx(ctx, func(tx store.Session) error {
		result = domain.PriceSaveResult{}

		previous, err := tx.ListOverridesStartingOn(ctx, lastStart)
		if err != nil {
			return err
		}
		current, err := tx.ListOverridesStartingOn(ctx, thisStart)
		if err != nil {
			return err
		}
		covered := make(map[int64]bool, len(current))
		for _, w := range current {
			covered[w.ProductID] = true
		}

		sort.Slice(previous, func(i, j int) bool { return previous[i].ID < previous[j].ID })
		for _, w := range previous {
			if covered[w.ProductID] {
				continue
			}
			if _, err := tx.CreateOverride(ctx, domain.WeeklyPriceOverride{
				ProductID:     w.ProductID,
				EffectiveFrom: thisStart,
				EffectiveTo:   thisEnd,
				BasePrice:     w.BasePrice,
				DeliveryPrice: w.DeliveryPrice,
			}); err != nil {
				return fmt.Errorf("clone weekly price %d: %w", w.ID, err)
			}
			covered[w.ProductID] = true
			result.Created++
		}
		return nil
	})
	if err != nil {
		return domain.PriceSaveResult{}, err
	}

	s.invalidateWeek(ctx, thisStart)
	s.logAudit(ctx, "weekly_price_clone", "weekly_price", thisStart.Format(pricing.DateLayout), fmt.Sprintf("created=%d", result.Created))
	return result, nil
}

func (s *Service) invalidateWeek(ctx context.Context, day time.Time) {
	start, _ := pricing.WeekOf(day)
	for i := 0; i < 7; i++ {
		s.invalidateMatrix(ctx, start.AddDate(0, 0, i))
	}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
