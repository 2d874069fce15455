package consumption

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/de-tools/stock-atlas/pkg/adapters"
	"github.com/de-tools/stock-atlas/pkg/models/domain"
	ledgerstore "github.com/de-tools/stock-atlas/pkg/store/duckdb/ledger"
)

// Estimator computes daily consumption rates from stored ledgers. It is
// read-only: it fetches a window snapshot up front and computes purely over
// it, so it may run concurrently with writes to other ledgers.
type Estimator struct {
	ledgers ledgerstore.Store
}

func NewEstimator(ledgers ledgerstore.Store) *Estimator {
	return &Estimator{ledgers: ledgers}
}

// DailyConsumption estimates the rate for one ledger as of the given instant.
// It fetches the configured window plus an overshoot margin before it, so a
// period straddling the window start can be prorated. A nil rate means the
// statistical gates were not met.
func (e *Estimator) DailyConsumption(
	ctx context.Context,
	key domain.LedgerKey,
	asOf time.Time,
	cfg domain.ConsumptionConfig,
) (*decimal.Decimal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("consumption config: %w", err)
	}

	windowStart := addDays(asOf, -cfg.WindowDays)
	fetchStart := addDays(windowStart, -domain.OvershootDays)

	rows, err := e.ledgers.GetWindow(ctx, adapters.MapDomainKeyToStore(key), fetchStart, asOf)
	if err != nil {
		return nil, err
	}
	txs, err := adapters.MapStoreTransactionsToDomain(rows)
	if err != nil {
		return nil, err
	}

	rate, ok := Estimate(Segment(txs, cfg), windowStart, cfg)
	if !ok {
		return nil, nil
	}
	return &rate, nil
}

func addDays(t time.Time, days float64) time.Time {
	return t.Add(time.Duration(days * 24 * float64(time.Hour)))
}
