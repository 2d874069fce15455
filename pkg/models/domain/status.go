package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the resupply picture for one ledger at a point in time.
type ProductStatus struct {
	Key             LedgerKey
	AsOf            time.Time
	Balance         decimal.Decimal
	StockedOutSince *time.Time
	// DailyRate is nil when the estimator reported no data.
	DailyRate *decimal.Decimal
	// MonthsRemaining is nil when the rate is unknown or zero.
	MonthsRemaining *decimal.Decimal
	Category        StockCategory
}
