package consumption

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/de-tools/stock-atlas/pkg/models/domain"
)

// Estimate computes a daily consumption rate from closed periods, prorating
// any period that straddles windowStart by the fraction of its length falling
// inside the window. It returns (rate, true), or (zero, false) when the
// statistical gates are not met: fewer qualifying periods than
// cfg.MinPeriods, or less total observed time than cfg.MinWindowDays.
//
// The rate is non-negative by construction: period consumption sums
// magnitudes and is never netted against receipts.
func Estimate(
	periods []domain.ConsumptionPeriod,
	windowStart time.Time,
	cfg domain.ConsumptionConfig,
) (decimal.Decimal, bool) {
	totalConsumption := decimal.Zero
	totalDays := 0.0
	qualifying := 0

	for _, p := range periods {
		length := p.Days()
		if length <= 0 {
			continue
		}
		normalized := normalizedDays(p, windowStart)
		if normalized <= 0 {
			// Entirely before the window.
			continue
		}
		qualifying++
		totalDays += normalized
		totalConsumption = totalConsumption.Add(
			p.Consumption.Mul(decimal.NewFromFloat(normalized / length)))
	}

	if qualifying < cfg.MinPeriods || totalDays < cfg.MinWindowDays || totalDays == 0 {
		return decimal.Zero, false
	}
	return totalConsumption.Div(decimal.NewFromFloat(totalDays)), true
}

// normalizedDays returns how many days of the period fall on or after the
// window start, at sub-day precision.
func normalizedDays(p domain.ConsumptionPeriod, windowStart time.Time) float64 {
	start := p.Start
	if start.Before(windowStart) {
		start = windowStart
	}
	if !p.End.After(start) {
		return 0
	}
	return p.End.Sub(start).Hours() / 24
}
