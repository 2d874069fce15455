package status

import (
	"context"
	"time"

	"github.com/de-tools/stock-atlas/pkg/adapters"
	"github.com/de-tools/stock-atlas/pkg/models/domain"
	"github.com/de-tools/stock-atlas/pkg/services/consumption"
	statestore "github.com/de-tools/stock-atlas/pkg/store/duckdb/state"
)

// Service combines the cached ledger state with a consumption estimate to
// produce a resupply status per ledger.
type Service struct {
	states    statestore.Store
	estimator *consumption.Estimator
}

func NewService(states statestore.Store, estimator *consumption.Estimator) *Service {
	return &Service{states: states, estimator: estimator}
}

// GetStatus classifies one ledger as of the given instant.
func (s *Service) GetStatus(
	ctx context.Context,
	key domain.LedgerKey,
	asOf time.Time,
	consumptionCfg domain.ConsumptionConfig,
	thresholds domain.ThresholdConfig,
) (*domain.ProductStatus, error) {
	row, err := s.states.Get(ctx, adapters.MapDomainKeyToStore(key))
	if err != nil {
		return nil, err
	}

	result := &domain.ProductStatus{Key: key, AsOf: asOf}
	if row == nil {
		// Never reported: no stock value at all.
		result.Category = Categorize(nil, nil, thresholds)
		return result, nil
	}

	state, err := adapters.MapStoreStateToDomain(*row)
	if err != nil {
		return nil, err
	}
	result.Balance = state.Balance
	result.StockedOutSince = state.StockedOutSince

	rate, err := s.estimator.DailyConsumption(ctx, key, asOf, consumptionCfg)
	if err != nil {
		return nil, err
	}
	result.DailyRate = rate
	if months, ok := MonthsOfStockRemaining(state.Balance, rate); ok {
		result.MonthsRemaining = &months
	}
	result.Category = Categorize(&state.Balance, rate, thresholds)
	return result, nil
}
