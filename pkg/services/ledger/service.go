package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/de-tools/stock-atlas/pkg/adapters"
	"github.com/de-tools/stock-atlas/pkg/models/domain"
	"github.com/de-tools/stock-atlas/pkg/models/store"
	"github.com/de-tools/stock-atlas/pkg/store/duckdb"
	ledgerstore "github.com/de-tools/stock-atlas/pkg/store/duckdb/ledger"
	statestore "github.com/de-tools/stock-atlas/pkg/store/duckdb/state"
)

// Service wires the reconciliation engine to the ledger and state stores.
// Callers must serialize calls per ledger key (see Engine); the service adds
// per-report storage atomicity on top.
type Service struct {
	engine  *Engine
	db      *sql.DB
	ledgers ledgerstore.Store
	states  statestore.Store
}

func NewService(db *sql.DB, ledgers ledgerstore.Store, states statestore.Store) *Service {
	return &Service{
		engine:  NewEngine(),
		db:      db,
		ledgers: ledgers,
		states:  states,
	}
}

// ReportResult is the persisted outcome of one report.
type ReportResult struct {
	Transactions []domain.Transaction
	States       []domain.LedgerState
	Skipped      int
}

// ApplyReport validates and applies a report, appending the declared and
// inferred transactions of every ledger it touches and refreshing their state
// snapshots, all within a single storage transaction. Validation failure
// leaves the store untouched.
func (s *Service) ApplyReport(ctx context.Context, report domain.Report) (*ReportResult, error) {
	logger := zerolog.Ctx(ctx)

	if report.EntityID == "" {
		return nil, &ValidationError{Field: "entity_id", Reason: "is required"}
	}

	groups := SplitByLedger(report)
	keys := make([]domain.LedgerKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	// Deterministic application order across ledgers.
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	result := &ReportResult{}
	for _, key := range keys {
		state, err := s.loadState(ctx, key)
		if err != nil {
			return nil, err
		}
		applied, err := s.engine.ApplyReport(ctx, state, groups[key])
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, applied.Transactions...)
		result.States = append(result.States, applied.State)
		result.Skipped += applied.Skipped
	}

	rows := make([]store.Transaction, 0, len(result.Transactions))
	for _, t := range result.Transactions {
		rows = append(rows, adapters.MapDomainTransactionToStore(t))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin report transaction: %w", err)
	}
	defer tx.Rollback()
	txCtx := duckdb.WithTransaction(ctx, tx)

	if err := s.ledgers.Append(txCtx, rows); err != nil {
		return nil, err
	}
	for _, st := range result.States {
		if err := s.states.Upsert(txCtx, adapters.MapDomainStateToStore(st)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit report: %w", err)
	}

	logger.Info().
		Str("report", report.Ref).
		Str("entity", report.EntityID).
		Int("transactions", len(result.Transactions)).
		Int("skipped", result.Skipped).
		Msg("report applied")

	return result, nil
}

// GetLedger returns one ledger's full transaction history in replay order.
func (s *Service) GetLedger(ctx context.Context, key domain.LedgerKey) ([]domain.Transaction, error) {
	rows, err := s.ledgers.GetLedger(ctx, adapters.MapDomainKeyToStore(key))
	if err != nil {
		return nil, err
	}
	return adapters.MapStoreTransactionsToDomain(rows)
}

// GetState returns the cached state snapshot, or the empty state when the
// ledger has never been written.
func (s *Service) GetState(ctx context.Context, key domain.LedgerKey) (domain.LedgerState, error) {
	return s.loadState(ctx, key)
}

// Rebuild regenerates a ledger from its declared transactions and swaps it in
// place atomically, together with the refreshed state snapshot.
func (s *Service) Rebuild(ctx context.Context, key domain.LedgerKey) (domain.LedgerState, error) {
	declaredRows, err := s.ledgers.GetDeclared(ctx, adapters.MapDomainKeyToStore(key))
	if err != nil {
		return domain.LedgerState{}, err
	}
	declared, err := adapters.MapStoreTransactionsToDomain(declaredRows)
	if err != nil {
		return domain.LedgerState{}, err
	}

	rebuilt, state, err := s.engine.Rebuild(ctx, key, declared)
	if err != nil {
		return domain.LedgerState{}, err
	}

	rows := make([]store.Transaction, 0, len(rebuilt))
	for _, t := range rebuilt {
		rows = append(rows, adapters.MapDomainTransactionToStore(t))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("begin rebuild transaction: %w", err)
	}
	defer tx.Rollback()
	txCtx := duckdb.WithTransaction(ctx, tx)

	if err := s.ledgers.Replace(txCtx, adapters.MapDomainKeyToStore(key), rows); err != nil {
		return domain.LedgerState{}, err
	}
	if err := s.states.Upsert(txCtx, adapters.MapDomainStateToStore(state)); err != nil {
		return domain.LedgerState{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.LedgerState{}, fmt.Errorf("commit rebuild: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("ledger", key.String()).
		Int("transactions", len(rebuilt)).
		Msg("ledger rebuilt")

	return state, nil
}

func (s *Service) loadState(ctx context.Context, key domain.LedgerKey) (domain.LedgerState, error) {
	row, err := s.states.Get(ctx, adapters.MapDomainKeyToStore(key))
	if err != nil {
		return domain.LedgerState{}, err
	}
	if row == nil {
		return domain.EmptyLedgerState(key), nil
	}
	return adapters.MapStoreStateToDomain(*row)
}
