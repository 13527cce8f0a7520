package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/matrix"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
	"hazelinvoice/backend/internal/store/memory"
)

// Wednesday; the week runs 2026-03-09 to 2026-03-15.
var testDay = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

const (
	testDate = "2026-03-11"

	outletAutoliv = int64(1)
	outletNKC     = int64(2)
	outletTaiyo   = int64(21)

	productKamatis = int64(5) // 50 + 10 + 5 = 65
	productPechay  = int64(9) // 20 + 5 + 0 = 25
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	return newServiceWith(t, memory.NewSeeded())
}

func newServiceWith(t *testing.T, repo *memory.Store) (*Service, *memory.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := New(repo, matrix.NewBuilder(nil, 0), logger, "PH")
	svc.SetClock(func() time.Time { return testDay.Add(9 * time.Hour) })
	return svc, repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func seedReceipt(t *testing.T, repo *memory.Store, outletID int64, status string, productID int64, qty int, price int64) domain.Receipt {
	t.Helper()
	ctx := context.Background()

	var saved domain.Receipt
	err := repo.WithinTx(ctx, func(tx store.Session) error {
		outlets, err := tx.GetOutletsByIDs(ctx, []int64{outletID})
		if err != nil {
			return err
		}
		id := outletID
		amount := dec(price).Mul(dec(int64(qty)))
		r, err := tx.CreateReceipt(ctx, domain.Receipt{
			Number:      fmt.Sprintf("SEED-%d-%s-%d", outletID, status, productID),
			Date:        testDay,
			OutletID:    &id,
			OutletName:  outlets[outletID].Name,
			Type:        domain.ReceiptTypeDelivery,
			Status:      status,
			TotalAmount: amount,
			PaidAmount:  amount,
		})
		if err != nil {
			return err
		}
		pid := productID
		if _, err := tx.CreateReceiptLine(ctx, domain.ReceiptLine{
			ReceiptID: r.ID,
			ProductID: &pid,
			ItemName:  "seeded",
			Quantity:  qty,
			Unit:      "kg",
			Price:     dec(price),
			Amount:    amount,
		}); err != nil {
			return err
		}
		saved = *r
		return nil
	})
	require.NoError(t, err)
	return saved
}

func unpaidFor(t *testing.T, svc *Service, outletID int64) []domain.Receipt {
	t.Helper()
	list, err := svc.ListReceiptsByStatus(context.Background(), testDate, domain.StatusUnpaid)
	require.NoError(t, err)
	out := make([]domain.Receipt, 0, 1)
	for _, r := range list.Receipts {
		if r.OutletID != nil && *r.OutletID == outletID {
			out = append(out, r)
		}
	}
	return out
}

func saveCells(t *testing.T, svc *Service, prices map[int64]decimal.Decimal, cells ...domain.MatrixCellInput) domain.MatrixSaveResult {
	t.Helper()
	res, err := svc.SaveMatrix(adminCtx(), domain.MatrixSaveRequest{Date: testDate, Cells: cells, Prices: prices})
	require.NoError(t, err)
	return res
}

func cell(productID int64, outletID int64, qty decimal.Decimal) domain.MatrixCellInput {
	return domain.MatrixCellInput{ProductID: productID, OutletID: outletID, Quantity: qty}
}

func TestSaveMatrixCreatesUnpaidReceiptAtResolvedPrice(t *testing.T) {
	svc, _ := newTestService(t)

	res := saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, decimal.RequireFromString("2.5")))
	assert.Equal(t, []string{"DR-2026-005001"}, res.ReceiptsCreated)
	assert.Equal(t, 1, res.LinesWritten)

	unpaid := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, unpaid, 1)
	require.Len(t, unpaid[0].Lines, 1)
	line := unpaid[0].Lines[0]
	assert.Equal(t, 3, line.Quantity)
	assert.True(t, line.Price.Equal(dec(65)), "price %s", line.Price)
	assert.True(t, line.CostPriceSnapshot.Equal(dec(50)))
	assert.True(t, unpaid[0].TotalAmount.Equal(dec(195)))
	assert.Equal(t, "Autoliv", unpaid[0].OutletName)
	assert.Equal(t, domain.ReceiptTypeDelivery, unpaid[0].Type)
}

func TestSaveMatrixIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	cells := []domain.MatrixCellInput{
		cell(productKamatis, outletAutoliv, dec(3)),
		cell(productPechay, outletAutoliv, dec(2)),
	}

	first := saveCells(t, svc, nil, cells...)
	require.Len(t, first.ReceiptsCreated, 1)
	before := unpaidFor(t, svc, outletAutoliv)

	second := saveCells(t, svc, nil, cells...)
	assert.Empty(t, second.ReceiptsCreated)

	after := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].Number, after[0].Number)
	assert.True(t, before[0].TotalAmount.Equal(after[0].TotalAmount))
	assert.Len(t, after[0].Lines, 2)
	assert.True(t, after[0].TotalAmount.Equal(dec(3*65+2*25)))
}

func TestSaveMatrixPaidQuantityIsAFloor(t *testing.T) {
	svc, repo := newTestService(t)
	seedReceipt(t, repo, outletNKC, domain.StatusPaid, productKamatis, 4, 65)

	res := saveCells(t, svc, nil, cell(productKamatis, outletNKC, dec(2)))
	assert.Empty(t, res.ReceiptsCreated)
	assert.Equal(t, 1, res.OutletsSkipped)
	assert.Empty(t, unpaidFor(t, svc, outletNKC))

	paid, err := svc.ListReceiptsByStatus(context.Background(), testDate, domain.StatusPaid)
	require.NoError(t, err)
	require.Len(t, paid.Receipts, 1)
	assert.Equal(t, 4, paid.Receipts[0].Lines[0].Quantity)

	saveCells(t, svc, nil, cell(productKamatis, outletNKC, dec(6)))
	unpaid := unpaidFor(t, svc, outletNKC)
	require.Len(t, unpaid, 1)
	require.Len(t, unpaid[0].Lines, 1)
	assert.Equal(t, 2, unpaid[0].Lines[0].Quantity)
}

func TestSaveMatrixDropsLineWhenTargetFallsToZero(t *testing.T) {
	svc, _ := newTestService(t)
	saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, dec(3)))

	res := saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, dec(-1)))
	assert.Equal(t, 1, res.LinesRemoved)

	unpaid := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, unpaid, 1)
	assert.Empty(t, unpaid[0].Lines)
	assert.True(t, unpaid[0].TotalAmount.IsZero())
}

func TestSaveMatrixPostedPriceWritesWeeklyOverride(t *testing.T) {
	svc, _ := newTestService(t)

	res := saveCells(t, svc, map[int64]decimal.Decimal{productKamatis: dec(70)}, cell(productKamatis, outletAutoliv, dec(1)))
	assert.Equal(t, 1, res.PricesChanged)

	price, err := svc.ResolvePrice(context.Background(), productKamatis, testDate)
	require.NoError(t, err)
	assert.True(t, price.Price.Equal(dec(70)))
	assert.True(t, price.Markup.Equal(dec(15)))
	assert.NotZero(t, price.OverrideID)

	unpaid := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, unpaid, 1)
	assert.True(t, unpaid[0].Lines[0].Price.Equal(dec(70)))

	// the override spans the whole week
	sunday, err := svc.ResolvePrice(context.Background(), productKamatis, "2026-03-15")
	require.NoError(t, err)
	assert.True(t, sunday.Price.Equal(dec(70)))
	nextMonday, err := svc.ResolvePrice(context.Background(), productKamatis, "2026-03-16")
	require.NoError(t, err)
	assert.True(t, nextMonday.Price.Equal(dec(65)))
}

func TestSaveMatrixDefaultPriceWritesNothing(t *testing.T) {
	svc, repo := newTestService(t)

	res := saveCells(t, svc, map[int64]decimal.Decimal{
		productKamatis: decimal.RequireFromString("65.004"),
		productPechay:  dec(0),
	})
	assert.Equal(t, 0, res.PricesChanged)

	overrides, err := repo.ListOverridesCovering(context.Background(), testDay, nil)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestSaveMatrixConvergesDuplicateOverrides(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	older, err := repo.CreateOverride(ctx, domain.WeeklyPriceOverride{
		ProductID:     productKamatis,
		EffectiveFrom: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		DeliveryPrice: dec(80),
	})
	require.NoError(t, err)
	newer, err := repo.CreateOverride(ctx, domain.WeeklyPriceOverride{
		ProductID:     productKamatis,
		EffectiveFrom: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		DeliveryPrice: dec(75),
	})
	require.NoError(t, err)

	before, err := svc.ResolvePrice(ctx, productKamatis, testDate)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, before.OverrideID)
	assert.True(t, before.Price.Equal(dec(75)))

	saveCells(t, svc, map[int64]decimal.Decimal{productKamatis: dec(90)})

	remaining, err := repo.ListOverridesCovering(ctx, testDay, []int64{productKamatis})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, newer.ID, remaining[0].ID)
	assert.NotEqual(t, older.ID, remaining[0].ID)
	assert.True(t, remaining[0].DeliveryPrice.Equal(dec(90)))
}

func TestSaveMatrixUnknownOutletRollsBackEverything(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.SaveMatrix(adminCtx(), domain.MatrixSaveRequest{
		Date:   testDate,
		Prices: map[int64]decimal.Decimal{productKamatis: dec(80)},
		Cells: []domain.MatrixCellInput{
			cell(productKamatis, outletAutoliv, dec(3)),
			cell(productKamatis, 999, dec(3)),
		},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	assert.Empty(t, unpaidFor(t, svc, outletAutoliv))
	overrides, err := repo.ListOverridesCovering(context.Background(), testDay, nil)
	require.NoError(t, err)
	assert.Empty(t, overrides)

	next, err := repo.NextSequenceValue(context.Background(), store.SequenceReceipt, 2026, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5001), next)
}

func TestSaveMatrixCollectsValidationProblems(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveMatrix(adminCtx(), domain.MatrixSaveRequest{
		Date: testDate,
		Cells: []domain.MatrixCellInput{
			{ProductID: 0, OutletID: 0, Quantity: dec(1)},
		},
	})
	require.ErrorIs(t, err, store.ErrInvalidInput)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)

	_, err = svc.SaveMatrix(adminCtx(), domain.MatrixSaveRequest{Date: "11/03/2026"})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSaveMatrixRejectsOversizedQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, dec(3)))

	for _, raw := range []string{"9223372036854775813", "18446744073709551621", "4294967301"} {
		_, err := svc.SaveMatrix(adminCtx(), domain.MatrixSaveRequest{
			Date: testDate,
			Cells: []domain.MatrixCellInput{
				cell(productKamatis, outletAutoliv, decimal.RequireFromString(raw)),
			},
		})
		require.ErrorIs(t, err, store.ErrInvalidInput, raw)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"cells[0]: quantity must not exceed 2147483647"}, verr.Problems)
	}

	unpaid := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, unpaid, 1)
	require.Len(t, unpaid[0].Lines, 1)
	assert.Equal(t, 3, unpaid[0].Lines[0].Quantity)
}

func TestSaveMatrixAllZeroOutletGetsNoReceipt(t *testing.T) {
	svc, repo := newTestService(t)

	res := saveCells(t, svc, nil,
		cell(productKamatis, outletTaiyo, dec(0)),
		cell(productPechay, outletTaiyo, dec(0)),
	)
	assert.Empty(t, res.ReceiptsCreated)
	assert.Equal(t, 1, res.OutletsSkipped)
	assert.Zero(t, res.LinesWritten)
	assert.Empty(t, unpaidFor(t, svc, outletTaiyo))

	next, err := repo.NextSequenceValue(context.Background(), store.SequenceReceipt, 2026, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5001), next)
}

func TestGetMatrixListsOutletsWithOrdersInPriorityOrder(t *testing.T) {
	svc, _ := newTestService(t)
	saveCells(t, svc, nil,
		cell(productKamatis, outletTaiyo, dec(2)),
		cell(productKamatis, outletAutoliv, dec(3)),
	)

	view, err := svc.GetMatrix(context.Background(), domain.MatrixQuery{Date: testDate})
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalOutlets)
	require.Len(t, view.Outlets, 2)
	assert.Equal(t, "Autoliv", view.Outlets[0].Name)
	assert.Equal(t, "Taiyo", view.Outlets[1].Name)
	assert.True(t, view.GrandTotalQty.Equal(dec(5)))
	assert.True(t, view.GrandTotalAmount.Equal(dec(325)))
	assert.Equal(t, 12, view.TotalProducts)

	for _, p := range view.Products {
		if p.ID == productKamatis {
			assert.Equal(t, matrix.StatusUnpaid, p.Status)
			assert.True(t, p.TotalQty.Equal(dec(5)))
		}
	}
}

func TestGetMatrixAssignsDefaultGroupWhenNoneGrouped(t *testing.T) {
	repo := memory.New()
	outlet := repo.SeedOutlet(domain.Outlet{Name: "Feeder", Active: true})
	product := repo.SeedProduct(domain.Product{Name: "Kamatis", Unit: "kg", UnitCost: dec(50), Markup: dec(10), DeliveryFee: dec(5), Active: true})
	svc, _ := newServiceWith(t, repo)

	saveCells(t, svc, nil, cell(product.ID, outlet.ID, dec(1)))

	view, err := svc.GetMatrix(context.Background(), domain.MatrixQuery{Date: testDate})
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalOutlets)

	grouped, err := repo.ListOutletsInGroups(context.Background(), domain.MatrixGroups)
	require.NoError(t, err)
	require.Len(t, grouped, 1)
	assert.Equal(t, domain.DefaultOutletGroup, grouped[0].GroupName)
}

func TestVoidedReceiptDropsOutOfMatrix(t *testing.T) {
	svc, _ := newTestService(t)
	saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, dec(3)))
	unpaid := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, unpaid, 1)

	voided, err := svc.VoidReceipt(adminCtx(), unpaid[0].ID, "duplicate entry")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoid, voided.Status)

	view, err := svc.GetMatrix(context.Background(), domain.MatrixQuery{Date: testDate})
	require.NoError(t, err)
	assert.Equal(t, 0, view.TotalOutlets)
	assert.True(t, view.GrandTotalQty.IsZero())

	_, err = svc.VoidReceipt(adminCtx(), unpaid[0].ID, "again")
	require.ErrorIs(t, err, store.ErrInvalidState)
	_, err = svc.VoidReceipt(adminCtx(), unpaid[0].ID, " ")
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestExportViewContainsEveryProductAndOutlet(t *testing.T) {
	svc, _ := newTestService(t)
	cells := make([]domain.MatrixCellInput, 0, 14)
	for id := int64(1); id <= 14; id++ {
		cells = append(cells, cell(productKamatis, id, dec(1)))
	}
	saveCells(t, svc, nil, cells...)

	view, err := svc.ExportView(context.Background(), testDate)
	require.NoError(t, err)
	assert.Len(t, view.Outlets, 14)
	assert.Len(t, view.Products, 12)
	assert.Len(t, view.Cells, 14)
	assert.Equal(t, 1, view.TotalPages)
}

func TestSaveOutletOrderPrunesAbsentLines(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	res, err := svc.SaveOutletOrder(ctx, domain.OutletOrderSaveRequest{
		Date:       testDate,
		OutletID:   outletAutoliv,
		Quantities: map[int64]decimal.Decimal{productKamatis: dec(3), productPechay: dec(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, "DR-2026-005001", res.ReceiptNumber)
	assert.Equal(t, 2, res.LinesWritten)

	res, err = svc.SaveOutletOrder(ctx, domain.OutletOrderSaveRequest{
		Date:       testDate,
		OutletID:   outletAutoliv,
		Quantities: map[int64]decimal.Decimal{productKamatis: dec(3), productPechay: dec(0)},
		Prices:     map[int64]decimal.Decimal{productKamatis: dec(72)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.LinesRemoved)
	assert.Equal(t, 0, res.PricesChanged)

	unpaid := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, unpaid, 1)
	require.Len(t, unpaid[0].Lines, 1)
	assert.True(t, unpaid[0].Lines[0].Price.Equal(dec(72)))
	assert.True(t, unpaid[0].TotalAmount.Equal(dec(216)))

	// single-outlet saves never touch weekly prices
	price, err := svc.ResolvePrice(ctx, productKamatis, testDate)
	require.NoError(t, err)
	assert.True(t, price.Price.Equal(dec(65)))
}

func TestSaveOutletOrderRejectsPriceWithoutQuantity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveOutletOrder(adminCtx(), domain.OutletOrderSaveRequest{
		Date:     testDate,
		OutletID: outletAutoliv,
		Prices:   map[int64]decimal.Decimal{productKamatis: dec(70), productPechay: dec(30)},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
	assert.Empty(t, unpaidFor(t, svc, outletAutoliv))
}

func TestSaveOutletOrderRejectsOversizedQuantity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveOutletOrder(adminCtx(), domain.OutletOrderSaveRequest{
		Date:     testDate,
		OutletID: outletAutoliv,
		Quantities: map[int64]decimal.Decimal{
			productKamatis: decimal.RequireFromString("9223372036854775813"),
			productPechay:  dec(2),
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"product 5: quantity must not exceed 2147483647"}, verr.Problems)
	assert.Empty(t, unpaidFor(t, svc, outletAutoliv))
}

func TestSaveOutletOrderUnknownOutlet(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveOutletOrder(adminCtx(), domain.OutletOrderSaveRequest{
		Date:       testDate,
		OutletID:   404,
		Quantities: map[int64]decimal.Decimal{productKamatis: dec(1)},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveOutletOrderAllOutletsOnlySavesPrices(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.SaveOutletOrder(adminCtx(), domain.OutletOrderSaveRequest{
		Date:       testDate,
		AllOutlets: true,
		Quantities: map[int64]decimal.Decimal{productKamatis: dec(3)},
		Prices:     map[int64]decimal.Decimal{productKamatis: dec(70)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PricesChanged)
	assert.Empty(t, res.ReceiptNumber)

	list, err := svc.ListReceiptsByStatus(context.Background(), testDate, domain.StatusUnpaid)
	require.NoError(t, err)
	assert.Empty(t, list.Receipts)
}

func TestGetOutletOrderSumsQuantities(t *testing.T) {
	svc, repo := newTestService(t)
	seedReceipt(t, repo, outletNKC, domain.StatusPaid, productKamatis, 4, 60)
	saveCells(t, svc, nil,
		cell(productKamatis, outletAutoliv, dec(3)),
		cell(productKamatis, outletNKC, dec(5)),
	)

	single, err := svc.GetOutletOrder(context.Background(), domain.OutletOrderQuery{Date: testDate, OutletID: outletNKC})
	require.NoError(t, err)
	assert.Equal(t, outletNKC, single.SelectedOutletID)
	byID := map[int64]domain.OutletOrderProduct{}
	for _, p := range single.Products {
		byID[p.ID] = p
	}
	assert.True(t, byID[productKamatis].Quantity.Equal(dec(5)))
	assert.True(t, byID[productKamatis].Price.Equal(dec(60)), "first priced line of the day wins")
	assert.True(t, byID[productPechay].Quantity.IsZero())
	assert.True(t, byID[productPechay].Price.Equal(dec(25)))

	all, err := svc.GetOutletOrder(context.Background(), domain.OutletOrderQuery{Date: testDate, AllOutlets: true})
	require.NoError(t, err)
	assert.Equal(t, outletAutoliv, all.SelectedOutletID)
	for _, p := range all.Products {
		if p.ID == productKamatis {
			assert.True(t, p.Quantity.Equal(dec(8)))
		}
	}

	_, err = svc.GetOutletOrder(context.Background(), domain.OutletOrderQuery{Date: testDate, OutletID: 999})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPriceVersusSaveAndView(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	res, err := svc.SavePriceVersus(ctx, domain.PriceVersusSaveRequest{
		TargetDate: testDate,
		Items:      []domain.PriceVersusInput{{ProductID: productKamatis, Markup: dec(20)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	view, err := svc.GetPriceVersus(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", view.WeekStart)
	assert.Equal(t, "2026-03-15", view.WeekEnd)
	require.Len(t, view.Items, 12)
	for _, item := range view.Items {
		if item.ProductID == productKamatis {
			assert.True(t, item.HasWeeklyRecord)
			assert.True(t, item.Markup.Equal(dec(20)))
			assert.True(t, item.Cost.Equal(dec(50)))
		} else {
			assert.False(t, item.HasWeeklyRecord)
		}
	}

	price, err := svc.ResolvePrice(ctx, productKamatis, testDate)
	require.NoError(t, err)
	assert.True(t, price.Price.Equal(dec(70)))

	again, err := svc.SavePriceVersus(ctx, domain.PriceVersusSaveRequest{
		TargetDate: testDate,
		Items:      []domain.PriceVersusInput{{ProductID: productKamatis, Markup: dec(20)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriceSaveResult{}, again)

	updated, err := svc.SavePriceVersus(ctx, domain.PriceVersusSaveRequest{
		TargetDate: testDate,
		Items:      []domain.PriceVersusInput{{ProductID: productKamatis, Markup: dec(25)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Updated)
}

func TestCloneLastWeekCopiesOncePerProduct(t *testing.T) {
	svc, repo := newTestService(t)
	_, err := repo.CreateOverride(context.Background(), domain.WeeklyPriceOverride{
		ProductID:     productKamatis,
		EffectiveFrom: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		BasePrice:     dec(60),
		DeliveryPrice: dec(70),
	})
	require.NoError(t, err)

	res, err := svc.CloneLastWeek(adminCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	res, err = svc.CloneLastWeek(adminCtx())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)

	price, err := svc.ResolvePrice(context.Background(), productKamatis, testDate)
	require.NoError(t, err)
	assert.True(t, price.Price.Equal(dec(70)))
	assert.True(t, price.Markup.Equal(dec(10)))
}

func TestResolvePriceUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ResolvePrice(context.Background(), 999, testDate)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.ResolvePrice(context.Background(), 0, testDate)
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestMarkReceiptPaidOnlyFromUnpaid(t *testing.T) {
	svc, _ := newTestService(t)
	saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, dec(2)))
	unpaid := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, unpaid, 1)

	paid, err := svc.MarkReceiptPaid(adminCtx(), unpaid[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.True(t, paid.PaidAmount.Equal(dec(130)))
	require.Len(t, paid.Payments, 1)
	assert.Equal(t, domain.PaymentCash, paid.Payments[0].Method)

	_, err = svc.MarkReceiptPaid(adminCtx(), unpaid[0].ID)
	require.ErrorIs(t, err, store.ErrInvalidState)
	_, err = svc.MarkReceiptPaid(adminCtx(), 12345)
	require.ErrorIs(t, err, store.ErrNotFound)

	// the paid quantity now floors the next save; raising the target opens a new draft
	res := saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, dec(5)))
	assert.Equal(t, []string{"DR-2026-005002"}, res.ReceiptsCreated)
	next := unpaidFor(t, svc, outletAutoliv)
	require.Len(t, next, 1)
	assert.Equal(t, 3, next[0].Lines[0].Quantity)
}

func TestListReceiptsByStatusRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListReceiptsByStatus(context.Background(), testDate, "Refunded")
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestReceiptNumbersAreUniqueUnderConcurrency(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	const workers = 24
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{}, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var number string
			err := repo.WithinTx(ctx, func(tx store.Session) error {
				n, err := svc.NextReceiptNumber(ctx, tx)
				number = n
				return err
			})
			assert.NoError(t, err)
			mu.Lock()
			numbers[number] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers)
	assert.Contains(t, numbers, "DR-2026-005001")
	assert.Contains(t, numbers, fmt.Sprintf("DR-2026-%06d", 5000+workers))
}

func TestCreatePurchaseBooksStockAndReusesSupplier(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminCtx()
	kamatis := productKamatis

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		Date:          testDate,
		SupplierName:  "Carbon Market",
		ContactNumber: "0917 123 4567",
		PaidAmount:    dec(100),
		Lines: []domain.PurchaseLineInput{
			{ProductID: &kamatis, Quantity: 10, Cost: dec(45)},
			{ItemName: "Sacks", Quantity: 2, Cost: dec(15)},
			{ItemName: "Ignored", Quantity: 0, Cost: dec(99)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-000001", purchase.Number)
	assert.Equal(t, domain.StatusPartial, purchase.Status)
	assert.True(t, purchase.TotalAmount.Equal(dec(480)))
	assert.Equal(t, "+639171234567", purchase.ContactNumber)
	require.Len(t, purchase.Lines, 2)
	assert.Equal(t, "Kamatis", purchase.Lines[0].ItemName)
	assert.Equal(t, "kg", purchase.Lines[0].Unit)
	assert.Equal(t, "pcs", purchase.Lines[1].Unit)

	movements := repo.StockMovements()
	require.Len(t, movements, 1)
	assert.Equal(t, productKamatis, movements[0].ProductID)
	assert.Equal(t, 10, movements[0].Quantity)
	assert.Equal(t, purchase.Number, movements[0].Reference)

	second, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		Date:         testDate,
		SupplierName: "  carbon market ",
		Lines:        []domain.PurchaseLineInput{{ItemName: "Twine", Quantity: 1, Cost: dec(5)}},
	})
	require.NoError(t, err)
	assert.Equal(t, *purchase.SupplierID, *second.SupplierID)
	assert.Equal(t, "PO-2026-000002", second.Number)
	assert.Equal(t, domain.StatusUnpaid, second.Status)

	list, err := svc.ListPurchases(context.Background(), testDate, "")
	require.NoError(t, err)
	assert.Len(t, list.Purchases, 2)
	assert.True(t, list.GrandTotal.Equal(dec(485)))
	assert.True(t, list.TotalBalance.Equal(dec(385)))
}

func TestCreatePurchaseValidation(t *testing.T) {
	svc, _ := newTestService(t)
	missing := int64(77)

	_, err := svc.CreatePurchase(adminCtx(), domain.PurchaseCreateRequest{
		Date:  testDate,
		Lines: []domain.PurchaseLineInput{{ItemName: "x", Quantity: 0, Cost: dec(1)}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)

	_, err = svc.CreatePurchase(adminCtx(), domain.PurchaseCreateRequest{
		Date:       testDate,
		SupplierID: &missing,
		Lines:      []domain.PurchaseLineInput{{ItemName: "x", Quantity: 1, Cost: dec(1)}},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.CreatePurchase(adminCtx(), domain.PurchaseCreateRequest{
		Date:         testDate,
		SupplierName: "Carbon Market",
		Lines:        []domain.PurchaseLineInput{{ProductID: ptr(productKamatis), Quantity: pricing.MaxQuantity + 1, Cost: dec(1)}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "lines[0]: quantity must not exceed 2147483647")
}

func ptr(v int64) *int64 {
	return &v
}

func TestPurchasePaymentsSettleBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		Date:         testDate,
		SupplierName: "Carbon Market",
		Lines:        []domain.PurchaseLineInput{{ItemName: "Sacks", Quantity: 4, Cost: dec(25)}},
	})
	require.NoError(t, err)

	_, err = svc.AddPurchasePayment(ctx, purchase.ID, domain.PurchasePaymentRequest{Amount: dec(0), Method: "Crypto"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)

	partial, err := svc.AddPurchasePayment(ctx, purchase.ID, domain.PurchasePaymentRequest{Amount: dec(40), Method: domain.PaymentGCash, ReferenceNo: "GC-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, partial.Status)
	assert.True(t, partial.Balance().Equal(dec(60)))

	paid, err := svc.MarkPurchasePaid(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.True(t, paid.Balance().IsZero())
	assert.Len(t, paid.Payments, 2)

	_, err = svc.MarkPurchasePaid(ctx, purchase.ID)
	require.ErrorIs(t, err, store.ErrInvalidState)
}

func TestMutationsWriteAuditLog(t *testing.T) {
	svc, _ := newTestService(t)
	saveCells(t, svc, nil, cell(productKamatis, outletAutoliv, dec(1)))

	logs, err := svc.ListAuditLogs(context.Background(), testDate, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "matrix_save", logs[0].Action)
	assert.Equal(t, "admin", logs[0].ActorUsername)
}
