package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"

	"github.com/de-tools/stock-atlas/pkg/adapters"
	"github.com/de-tools/stock-atlas/pkg/models/domain"
	"github.com/de-tools/stock-atlas/pkg/models/store"
	"github.com/de-tools/stock-atlas/pkg/services/ledger"
	ledgerstore "github.com/de-tools/stock-atlas/pkg/store/duckdb/ledger"
	statestore "github.com/de-tools/stock-atlas/pkg/store/duckdb/state"
)

// Runner keeps the LedgerState projections in sync with the transaction
// ledger. Writes that arrive through the reconciliation service refresh their
// snapshot inline; writes landing via external sync only touch the
// transactions table, so the runner periodically replays dirty ledgers and
// upserts their snapshots.
//
// Ledgers are processed one at a time, which satisfies the per-ledger
// serialization the engine requires.
type Runner struct {
	engine  *ledger.Engine
	ledgers ledgerstore.Store
	states  statestore.Store

	done     chan struct{}
	progress chan RunnerProgress
	config   RunnerConfig
}

type RunnerConfig struct {
	PollInterval time.Duration
}

type RunnerProgress struct {
	ProcessedLedgers int
	TotalLedgers     int
	LastProcessedAt  time.Time
}

func NewRunner(ledgers ledgerstore.Store, states statestore.Store) *Runner {
	return &Runner{
		engine:   ledger.NewEngine(),
		ledgers:  ledgers,
		states:   states,
		done:     make(chan struct{}),
		progress: make(chan RunnerProgress, 100),
		config: RunnerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) Progress() <-chan RunnerProgress {
	return r.progress
}

func (r *Runner) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	defer close(r.done)
	defer close(r.progress)

	// Zero watermark: the first sweep covers the whole ledger store, so a
	// restart converges without extra bookkeeping.
	var watermark time.Time

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		sweepStart := time.Now().UTC()
		if err := r.sweep(ctx, watermark); err != nil {
			logger.Error().Err(err).Msg("projection sweep failed")
		} else {
			watermark = sweepStart
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("projection runner stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) sweep(ctx context.Context, since time.Time) error {
	logger := zerolog.Ctx(ctx)

	dirty, err := r.ledgers.GetDirtyKeys(ctx, since)
	if err != nil {
		return err
	}
	if len(dirty) == 0 {
		return nil
	}

	byEntity := make(map[string][]store.LedgerKey)
	for _, key := range dirty {
		byEntity[key.EntityID] = append(byEntity[key.EntityID], key)
	}
	entities := maps.Keys(byEntity)
	sort.Strings(entities)

	processed := 0
	for _, entity := range entities {
		for _, key := range byEntity[entity] {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.refresh(ctx, key); err != nil {
				logger.Error().
					Err(err).
					Str("ledger", key.EntityID+"/"+key.SectionID+"/"+key.ProductID).
					Msg("failed to refresh ledger projection")
				continue
			}
			processed++
			r.progress <- RunnerProgress{
				ProcessedLedgers: processed,
				TotalLedgers:     len(dirty),
				LastProcessedAt:  time.Now().UTC(),
			}
		}
		if err := r.states.UpdateProjection(ctx, entity, time.Now().UTC()); err != nil {
			logger.Error().Err(err).Str("entity", entity).Msg("failed to update projection watermark")
		}
	}
	return nil
}

// refresh recomputes one ledger's state snapshot by replaying its declared
// transactions through the engine.
func (r *Runner) refresh(ctx context.Context, key store.LedgerKey) error {
	rows, err := r.ledgers.GetLedger(ctx, key)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	txs, err := adapters.MapStoreTransactionsToDomain(rows)
	if err != nil {
		return err
	}

	declared := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Inferred {
			declared = append(declared, tx)
		}
	}

	domainKey := domain.LedgerKey{EntityID: key.EntityID, SectionID: key.SectionID, ProductID: key.ProductID}
	_, state, err := r.engine.Rebuild(ctx, domainKey, declared)
	if err != nil {
		return err
	}
	// The snapshot's sequence tracks the stored ledger tail, not the
	// replay's own numbering.
	state.LastSequence = txs[len(txs)-1].Sequence
	state.UpdatedAt = time.Now().UTC()

	return r.states.Upsert(ctx, adapters.MapDomainStateToStore(state))
}
