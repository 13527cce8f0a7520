package matrix

import (
	"strings"

	"github.com/shopspring/decimal"

	"hazelinvoice/backend/internal/domain"
)

const (
	StatusNoOrders  = "NO_ORDERS"
	StatusUnpaid    = "UNPAID"
	StatusPaid      = "PAID"
	StatusThreePlus = "THREE_PLUS"
	StatusNormal    = "NORMAL"
)

var threshold = decimal.NewFromInt(3)

var receiptStatusRank = map[string]int{
	domain.StatusUnpaid:  0,
	domain.StatusPartial: 1,
	domain.StatusPaid:    2,
	domain.StatusVoid:    3,
}

// CellStatus folds the statuses of receipts contributing to one cell. Unpaid
// wins over partial, which wins over paid.
func CellStatus(statuses []string) string {
	best := ""
	bestRank := len(receiptStatusRank) + 1
	for _, s := range statuses {
		rank, ok := receiptStatusRank[s]
		if !ok {
			continue
		}
		if rank < bestRank {
			best, bestRank = s, rank
		}
	}
	return strings.ToUpper(best)
}

// ProductStatus derives the display flag for a product across the whole group.
func ProductStatus(totalQty decimal.Decimal, hasUnpaid bool, hasPaid bool) string {
	switch {
	case !totalQty.IsPositive():
		return StatusNoOrders
	case hasUnpaid:
		return StatusUnpaid
	case hasPaid:
		return StatusPaid
	case totalQty.GreaterThanOrEqual(threshold):
		return StatusThreePlus
	default:
		return StatusNormal
	}
}
