package consumption

import (
	"github.com/de-tools/stock-atlas/pkg/models/domain"
)

// Segment partitions one ledger's transactions, already ordered by
// (timestamp, sequence), into closed consumption periods bounded by
// checkpoint balances.
//
// A stockout discards the currently open period: the consumption straddling
// it is unknowable. With the lenient default, a zero-valued balance still
// opens the next period at its own timestamp, since it is a checkpoint of
// known value; with cfg.ExcludeInvalidPeriods the next period only opens at
// the next non-stockout balance. A period left open at the end of the scan
// has no closing checkpoint and is dropped.
func Segment(txs []domain.Transaction, cfg domain.ConsumptionConfig) []domain.ConsumptionPeriod {
	var periods []domain.ConsumptionPeriod
	var open *domain.ConsumptionPeriod

	for _, tx := range txs {
		switch {
		case tx.IsCheckpoint():
			if open != nil {
				open.End = tx.Timestamp
				periods = append(periods, *open)
			}
			open = &domain.ConsumptionPeriod{Start: tx.Timestamp}

		case tx.IsStockout():
			open = nil
			if !cfg.ExcludeInvalidPeriods && tx.Action == domain.ActionBalance {
				open = &domain.ConsumptionPeriod{Start: tx.Timestamp}
			}

		case tx.Action == domain.ActionConsumption:
			// Consumption before the first checkpoint, or right after a
			// stockout, has no period to land in and is ignored.
			if open != nil {
				open.Consumption = open.Consumption.Add(tx.Quantity.Abs())
			}
		}
		// Receipts do not affect consumption totals.
	}

	return periods
}
