package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazelinvoice/backend/internal/domain"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, raw)
	require.NoError(t, err)
	return d
}

func dec(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func cabbage() domain.Product {
	return domain.Product{ID: 7, Name: "Cabbage", Unit: "kg", UnitCost: dec("40"), Markup: dec("8"), DeliveryFee: dec("2"), Active: true}
}

func TestResolveWithoutOverrideSumsMasterFields(t *testing.T) {
	res := Resolve(cabbage(), nil)
	assert.True(t, res.Price.Equal(dec("50")), "got %s", res.Price)
	assert.Zero(t, res.OverrideID)
}

func TestResolveOverridePrecedence(t *testing.T) {
	w := &domain.WeeklyPriceOverride{
		ID:                  3,
		ProductID:           7,
		CostOverride:        decimal.NewNullDecimal(dec("10")),
		DeliveryFeeOverride: decimal.NewNullDecimal(dec("2")),
		Markup:              dec("3"),
	}
	res := Resolve(cabbage(), w)
	assert.True(t, res.Price.Equal(dec("15")), "got %s", res.Price)
	assert.True(t, res.Cost.Equal(dec("10")))
	assert.Equal(t, int64(3), res.OverrideID)
}

func TestResolveLegacyBasePriceDerivesMarkup(t *testing.T) {
	w := &domain.WeeklyPriceOverride{ID: 1, ProductID: 7, BasePrice: dec("46")}
	res := Resolve(cabbage(), w)
	assert.True(t, res.Markup.Equal(dec("6")), "got %s", res.Markup)
	assert.True(t, res.Price.Equal(dec("48")), "got %s", res.Price)
}

func TestResolveStoredDeliveryPriceWins(t *testing.T) {
	w := &domain.WeeklyPriceOverride{ID: 1, ProductID: 7, Markup: dec("5"), DeliveryPrice: dec("60")}
	res := Resolve(cabbage(), w)
	assert.True(t, res.Price.Equal(dec("60")))
	assert.True(t, res.Markup.Equal(dec("5")))
}

func TestResolveKeepsMasterMarkupWhenOverrideHasNone(t *testing.T) {
	w := &domain.WeeklyPriceOverride{ID: 1, ProductID: 7, CostOverride: decimal.NewNullDecimal(dec("30"))}
	res := Resolve(cabbage(), w)
	assert.True(t, res.Markup.Equal(dec("8")))
	assert.True(t, res.Price.Equal(dec("40")))
}

func TestSelectOverrideTieBreak(t *testing.T) {
	target := day(t, "2026-03-10")
	overrides := []domain.WeeklyPriceOverride{
		{ID: 5, ProductID: 7, EffectiveFrom: day(t, "2026-03-09"), EffectiveTo: day(t, "2026-03-15")},
		{ID: 9, ProductID: 7, EffectiveFrom: day(t, "2026-03-10"), EffectiveTo: day(t, "2026-03-16")},
		{ID: 11, ProductID: 7, EffectiveFrom: day(t, "2026-03-11"), EffectiveTo: day(t, "2026-03-17")},
	}
	picked := SelectOverride(overrides, target)
	require.NotNil(t, picked)
	assert.Equal(t, int64(9), picked.ID)
}

func TestSelectOverrideSameStartPrefersHighestID(t *testing.T) {
	target := day(t, "2026-03-10")
	overrides := []domain.WeeklyPriceOverride{
		{ID: 12, ProductID: 7, EffectiveFrom: day(t, "2026-03-09"), EffectiveTo: day(t, "2026-03-15")},
		{ID: 4, ProductID: 7, EffectiveFrom: day(t, "2026-03-09"), EffectiveTo: day(t, "2026-03-15")},
	}
	picked := SelectOverride(overrides, target)
	require.NotNil(t, picked)
	assert.Equal(t, int64(12), picked.ID)
	assert.Nil(t, SelectOverride(overrides, day(t, "2026-03-16")))
}

func TestSelectByProductReportsDuplicates(t *testing.T) {
	target := day(t, "2026-03-10")
	overrides := []domain.WeeklyPriceOverride{
		{ID: 5, ProductID: 7, EffectiveFrom: day(t, "2026-03-09"), EffectiveTo: day(t, "2026-03-15")},
		{ID: 9, ProductID: 7, EffectiveFrom: day(t, "2026-03-10"), EffectiveTo: day(t, "2026-03-16")},
		{ID: 2, ProductID: 8, EffectiveFrom: day(t, "2026-03-09"), EffectiveTo: day(t, "2026-03-15")},
	}
	sel := SelectByProduct(overrides, target)
	require.Len(t, sel, 2)
	assert.Equal(t, int64(9), sel[7].Override.ID)
	assert.Equal(t, []int64{5}, sel[7].Duplicates)
	assert.Empty(t, sel[8].Duplicates)
}

func TestWeekOf(t *testing.T) {
	start, end := WeekOf(day(t, "2026-03-10"))
	assert.Equal(t, "2026-03-09", start.Format(DateLayout))
	assert.Equal(t, "2026-03-15", end.Format(DateLayout))

	start, end = WeekOf(day(t, "2026-03-15"))
	assert.Equal(t, "2026-03-09", start.Format(DateLayout))
	assert.Equal(t, "2026-03-15", end.Format(DateLayout))
}

func TestPlanPriceChangeSkipsDefaultAndNonPositive(t *testing.T) {
	target := day(t, "2026-03-10")
	_, ok := PlanPriceChange(cabbage(), nil, dec("50"), target)
	assert.False(t, ok)
	_, ok = PlanPriceChange(cabbage(), nil, dec("50.004"), target)
	assert.False(t, ok)
	_, ok = PlanPriceChange(cabbage(), nil, decimal.Zero, target)
	assert.False(t, ok)
	_, ok = PlanPriceChange(cabbage(), nil, dec("-3"), target)
	assert.False(t, ok)
}

func TestPlanPriceChangeCreatesWeekOverride(t *testing.T) {
	change, ok := PlanPriceChange(cabbage(), nil, dec("55"), day(t, "2026-03-12"))
	require.True(t, ok)
	assert.False(t, change.Update)
	w := change.Override
	assert.Equal(t, "2026-03-09", w.EffectiveFrom.Format(DateLayout))
	assert.Equal(t, "2026-03-15", w.EffectiveTo.Format(DateLayout))
	assert.True(t, w.Markup.Equal(dec("13")), "got %s", w.Markup)
	assert.True(t, w.BasePrice.Equal(dec("53")))
	assert.True(t, w.DeliveryPrice.Equal(dec("55")))
	assert.False(t, w.CostOverride.Valid)

	assert.True(t, Resolve(cabbage(), &w).Price.Equal(dec("55")))
}

func TestPlanPriceChangeUpdatesSelectedOverride(t *testing.T) {
	existing := &domain.WeeklyPriceOverride{
		ID:            9,
		ProductID:     7,
		EffectiveFrom: day(t, "2026-03-09"),
		EffectiveTo:   day(t, "2026-03-15"),
		CostOverride:  decimal.NewNullDecimal(dec("30")),
		Markup:        dec("4"),
	}
	change, ok := PlanPriceChange(cabbage(), existing, dec("45"), day(t, "2026-03-10"))
	require.True(t, ok)
	assert.True(t, change.Update)
	assert.Equal(t, int64(9), change.Override.ID)
	assert.True(t, change.Override.Markup.Equal(dec("13")), "got %s", change.Override.Markup)
	assert.True(t, change.Override.BasePrice.Equal(dec("43")))
	assert.True(t, change.Override.CostOverride.Decimal.Equal(dec("30")))
}

func TestRoundQuantity(t *testing.T) {
	assert.Equal(t, 3, RoundQuantity(dec("2.5")))
	assert.Equal(t, 2, RoundQuantity(dec("2.49")))
	assert.Equal(t, 0, RoundQuantity(dec("-4")))
	assert.Equal(t, 1, RoundQuantity(dec("0.5")))
	assert.Equal(t, MaxQuantity, RoundQuantity(dec("18446744073709551621")))
	assert.Equal(t, MaxQuantity, RoundQuantity(dec("9223372036854775813")))
}

func TestQuantityInRange(t *testing.T) {
	assert.True(t, QuantityInRange(dec("2147483647")))
	assert.True(t, QuantityInRange(dec("2147483647.4")))
	assert.False(t, QuantityInRange(dec("2147483647.5")))
	assert.False(t, QuantityInRange(dec("4294967301")))
	assert.True(t, QuantityInRange(dec("-3")))
}

func TestParseDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)
	d, err := ParseDay("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", d.Format(DateLayout))

	_, err = ParseDay("10/03/2026", now)
	assert.Error(t, err)
}
