package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/matrix"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
)

func (s *Service) GetMatrix(ctx context.Context, q domain.MatrixQuery) (domain.MatrixView, error) {
	day, err := s.parseDay(q.Date)
	if err != nil {
		return domain.MatrixView{}, err
	}
	return s.matrix.Build(ctx, day, q, s.matrixLoader(day))
}

func (s *Service) matrixLoader(day time.Time) matrix.Loader {
	return func(ctx context.Context) (matrix.Snapshot, error) {
		outlets, err := s.matrixOutlets(ctx)
		if err != nil {
			return matrix.Snapshot{}, err
		}
		products, err := s.repo.ListProducts(ctx)
		if err != nil {
			return matrix.Snapshot{}, err
		}
		overrides, err := s.repo.ListOverridesCovering(ctx, day, nil)
		if err != nil {
			return matrix.Snapshot{}, err
		}
		receipts, err := s.repo.ListReceipts(ctx, store.ReceiptFilter{Day: day})
		if err != nil {
			return matrix.Snapshot{}, err
		}

		return matrix.Snapshot{
			Day:       day,
			Outlets:   outlets,
			Products:  products,
			Overrides: overrides,
			Receipts:  receipts,
		}, nil
	}
}

// matrixOutlets returns the active outlets of the matrix groups. When no
// outlet belongs to either group, ungrouped active outlets are moved into the
// default group first.
func (s *Service) matrixOutlets(ctx context.Context) ([]domain.Outlet, error) {
	outlets, err := s.repo.ListOutletsInGroups(ctx, domain.MatrixGroups)
	if err != nil {
		return nil, err
	}
	if len(outlets) > 0 {
		return outlets, nil
	}

	n, err := s.repo.AssignDefaultGroup(ctx, domain.DefaultOutletGroup)
	if err != nil {
		return nil, fmt.Errorf("assign default outlet group: %w", err)
	}
	if n == 0 {
		return outlets, nil
	}
	s.logger.WithFields(logrus.Fields{
		"group":   domain.DefaultOutletGroup,
		"outlets": n,
	}).Info("assigned ungrouped outlets to default group")
	return s.repo.ListOutletsInGroups(ctx, domain.MatrixGroups)
}

// SaveMatrix applies posted prices and reconciles every outlet present in the
// grid in a single transaction.
func (s *Service) SaveMatrix(ctx context.Context, req domain.MatrixSaveRequest) (domain.MatrixSaveResult, error) {
	day, err := s.parseDay(req.Date)
	if err != nil {
		return domain.MatrixSaveResult{}, err
	}

	problems := make([]string, 0)
	for i, cell := range req.Cells {
		if cell.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("cells[%d]: product_id is required", i))
		}
		if cell.OutletID <= 0 {
			problems = append(problems, fmt.Sprintf("cells[%d]: outlet_id is required", i))
		}
		if !pricing.QuantityInRange(cell.Quantity) {
			problems = append(problems, fmt.Sprintf("cells[%d]: quantity must not exceed %d", i, pricing.MaxQuantity))
		}
	}
	for productID := range req.Prices {
		if productID <= 0 {
			problems = append(problems, fmt.Sprintf("prices: invalid product id %d", productID))
		}
	}
	if len(problems) > 0 {
		return domain.MatrixSaveResult{}, invalid(problems...)
	}

	grid := matrix.GridFromCells(req.Cells)
	outletIDs := grid.OutletIDs()
	productIDs := unionIDs(grid.ProductIDs(), sortedKeys(req.Prices))

	var result domain.MatrixSaveResult
	err = s.repo.WithinTx(ctx, func(tx store.Session) error {
		result = domain.MatrixSaveResult{
			Date:            day.Format(pricing.DateLayout),
			ReceiptsCreated: []string{},
		}

		outlets, err := tx.GetOutletsByIDs(ctx, outletIDs)
		if err != nil {
			return err
		}
		for _, id := range outletIDs {
			if _, ok := outlets[id]; !ok {
				return fmt.Errorf("outlet %d: %w", id, store.ErrNotFound)
			}
		}

		book, err := loadPriceBook(ctx, tx, day, productIDs)
		if err != nil {
			return err
		}
		writes, err := applyPostedPrices(ctx, tx, book, req.Prices)
		if err != nil {
			return err
		}
		result.PricesChanged = writes.changed

		receipts, err := tx.ListReceipts(ctx, store.ReceiptFilter{Day: day})
		if err != nil {
			return err
		}

		for _, id := range outletIDs {
			res, err := s.reconcileOutlet(ctx, tx, day, book, receipts, outletOrder{
				outlet:  outlets[id],
				targets: grid.ForOutlet(id),
				prices:  req.Prices,
			})
			if err != nil {
				return err
			}
			if res.skipped {
				result.OutletsSkipped++
				continue
			}
			if res.created {
				result.ReceiptsCreated = append(result.ReceiptsCreated, res.receiptNumber)
			}
			result.LinesWritten += res.linesWritten
			result.LinesRemoved += res.linesRemoved
		}
		return nil
	})
	if err != nil {
		return domain.MatrixSaveResult{}, err
	}

	if result.PricesChanged > 0 {
		s.invalidateWeek(ctx, day)
	} else {
		s.invalidateMatrix(ctx, day)
	}
	s.logAudit(ctx, "matrix_save", "matrix", result.Date, fmt.Sprintf("outlets=%d,receipts_created=%d,lines=%d,removed=%d,prices=%d",
		len(outletIDs), len(result.ReceiptsCreated), result.LinesWritten, result.LinesRemoved, result.PricesChanged))
	return result, nil
}

// ExportView returns the whole matrix of a day on one page: every outlet and
// every product. The returned view bypasses the page cache.
func (s *Service) ExportView(ctx context.Context, date string) (domain.MatrixView, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.MatrixView{}, err
	}
	snap, err := s.matrixLoader(day)(ctx)
	if err != nil {
		return domain.MatrixView{}, err
	}

	q := domain.MatrixQuery{Print: true, Page: 1, ProductPage: 1}
	view := matrix.Assemble(snap, q)
	for page := 2; page <= view.TotalProductPages; page++ {
		q.ProductPage = page
		next := matrix.Assemble(snap, q)
		view.Products = append(view.Products, next.Products...)
		view.Cells = append(view.Cells, next.Cells...)
	}
	view.ProductPage = 1
	view.ProductPageSize = len(view.Products)
	view.TotalProductPages = 1
	return view, nil
}

func unionIDs(a []int64, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		seen[id] = struct{}{}
	}
	return sortedKeys(seen)
}
