// Package pricing resolves effective product prices from master catalog fields
// and weekly overrides, and plans the override writes a posted price implies.
package pricing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
)

const DateLayout = "2006-01-02"

// Tolerance is the smallest price difference treated as a real edit.
var Tolerance = decimal.New(5, -3)

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date. An empty value yields the day of now.
func ParseDay(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Day(now), nil
	}
	parsed, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format")
	}
	return parsed, nil
}

// WeekOf returns the Monday and Sunday of the week containing day.
func WeekOf(day time.Time) (time.Time, time.Time) {
	day = Day(day)
	diff := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -diff)
	return start, start.AddDate(0, 0, 6)
}

// SortOverrides orders overrides newest first: effectiveFrom desc, then id desc.
func SortOverrides(overrides []domain.WeeklyPriceOverride) {
	sort.SliceStable(overrides, func(i, j int) bool {
		a, b := overrides[i], overrides[j]
		if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
			return a.EffectiveFrom.After(b.EffectiveFrom)
		}
		return a.ID > b.ID
	})
}

// SelectOverride picks the override covering day. Ties between overlapping
// ranges go to the latest effectiveFrom, then the highest id.
func SelectOverride(overrides []domain.WeeklyPriceOverride, day time.Time) *domain.WeeklyPriceOverride {
	day = Day(day)
	var picked *domain.WeeklyPriceOverride
	for i := range overrides {
		w := overrides[i]
		if !w.Covers(day) {
			continue
		}
		if picked == nil || newer(w, *picked) {
			cp := w
			picked = &cp
		}
	}
	return picked
}

func newer(a, b domain.WeeklyPriceOverride) bool {
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.After(b.EffectiveFrom)
	}
	return a.ID > b.ID
}

// Selection is the override chosen for one product on a day, plus the ids of
// other overrides that also cover that day.
type Selection struct {
	Override   *domain.WeeklyPriceOverride
	Duplicates []int64
}

// SelectByProduct groups overrides covering day by product.
func SelectByProduct(overrides []domain.WeeklyPriceOverride, day time.Time) map[int64]Selection {
	day = Day(day)
	grouped := make(map[int64][]domain.WeeklyPriceOverride)
	for _, w := range overrides {
		if w.Covers(day) {
			grouped[w.ProductID] = append(grouped[w.ProductID], w)
		}
	}

	out := make(map[int64]Selection, len(grouped))
	for productID, list := range grouped {
		SortOverrides(list)
		first := list[0]
		sel := Selection{Override: &first}
		for _, dup := range list[1:] {
			sel.Duplicates = append(sel.Duplicates, dup.ID)
		}
		out[productID] = sel
	}
	return out
}

// Resolve layers w over the product's master pricing. w may be nil.
func Resolve(p domain.Product, w *domain.WeeklyPriceOverride) domain.PriceResult {
	res := domain.PriceResult{
		ProductID:   p.ID,
		Cost:        p.UnitCost,
		Markup:      p.Markup,
		DeliveryFee: p.DeliveryFee,
	}
	if w == nil {
		res.Price = res.Cost.Add(res.Markup).Add(res.DeliveryFee)
		return res
	}

	res.OverrideID = w.ID
	if w.CostOverride.Valid {
		res.Cost = w.CostOverride.Decimal
	}
	if w.DeliveryFeeOverride.Valid {
		res.DeliveryFee = w.DeliveryFeeOverride.Decimal
	}

	switch {
	case !w.Markup.IsZero():
		res.Markup = w.Markup
	case w.BasePrice.IsPositive() && res.Cost.IsPositive():
		// rows saved before markup was stored only carry a base price
		res.Markup = w.BasePrice.Sub(res.Cost)
	}

	if w.DeliveryPrice.IsPositive() {
		res.Price = w.DeliveryPrice
	} else {
		res.Price = res.Cost.Add(res.Markup).Add(res.DeliveryFee)
	}
	return res
}

// Change is an override write derived from a posted price.
type Change struct {
	// Update is true when Override is an existing row to be rewritten.
	Update   bool
	Override domain.WeeklyPriceOverride
}

// PlanPriceChange compares posted with the resolved default for day and
// returns the override write needed to make posted the price. It returns false
// when posted is not positive or is within Tolerance of the default.
func PlanPriceChange(p domain.Product, w *domain.WeeklyPriceOverride, posted decimal.Decimal, day time.Time) (Change, bool) {
	if !posted.IsPositive() {
		return Change{}, false
	}
	current := Resolve(p, w)
	if posted.Sub(current.Price).Abs().LessThan(Tolerance) {
		return Change{}, false
	}

	markup := posted.Sub(current.Cost).Sub(current.DeliveryFee)
	base := current.Cost.Add(markup)

	if w != nil {
		next := *w
		next.Markup = markup
		next.BasePrice = base
		next.DeliveryPrice = posted
		return Change{Update: true, Override: next}, true
	}

	start, end := WeekOf(day)
	return Change{Override: domain.WeeklyPriceOverride{
		ProductID:     p.ID,
		EffectiveFrom: start,
		EffectiveTo:   end,
		Markup:        markup,
		BasePrice:     base,
		DeliveryPrice: posted,
	}}, true
}

// MaxQuantity is the largest quantity a receipt or purchase line stores.
const MaxQuantity = math.MaxInt32

var maxQuantity = decimal.NewFromInt(MaxQuantity)

// QuantityInRange reports whether q rounds to at most MaxQuantity.
func QuantityInRange(q decimal.Decimal) bool {
	return q.Round(0).LessThanOrEqual(maxQuantity)
}

// RoundQuantity clamps q to [0, MaxQuantity] and rounds half away from zero.
func RoundQuantity(q decimal.Decimal) int {
	if q.IsNegative() {
		return 0
	}
	rounded := q.Round(0)
	if rounded.GreaterThan(maxQuantity) {
		return MaxQuantity
	}
	return int(rounded.IntPart())
}

// LineAmount is quantity times price.
func LineAmount(qty int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
