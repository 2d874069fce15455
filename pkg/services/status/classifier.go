package status

import (
	"github.com/shopspring/decimal"

	"github.com/de-tools/stock-atlas/pkg/models/domain"
)

var daysPerMonth = decimal.NewFromInt(30)

// Categorize maps current stock and the estimated daily consumption rate to a
// resupply status label. A nil stock or nil rate means the corresponding
// value is unknown. Pure function, safe to call with ad hoc thresholds.
func Categorize(stock, dailyRate *decimal.Decimal, thresholds domain.ThresholdConfig) domain.StockCategory {
	switch {
	case stock == nil:
		return domain.CategoryNoData
	case stock.IsZero():
		return domain.CategoryStockout
	case dailyRate == nil:
		return domain.CategoryNoData
	case dailyRate.IsZero():
		return domain.CategoryOverstock
	}

	monthsLeft := stock.Div(dailyRate.Mul(daysPerMonth))
	switch {
	case monthsLeft.LessThan(decimal.NewFromFloat(thresholds.UnderstockMonths)):
		return domain.CategoryUnderstock
	case monthsLeft.GreaterThan(decimal.NewFromFloat(thresholds.OverstockMonths)):
		return domain.CategoryOverstock
	default:
		return domain.CategoryAdequate
	}
}

// MonthsOfStockRemaining returns stock divided by a month of consumption at
// the given rate, or false when the rate is zero or unknown.
func MonthsOfStockRemaining(stock decimal.Decimal, dailyRate *decimal.Decimal) (decimal.Decimal, bool) {
	if dailyRate == nil || dailyRate.IsZero() {
		return decimal.Zero, false
	}
	return stock.Div(dailyRate.Mul(daysPerMonth)), true
}
