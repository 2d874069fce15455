package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/de-tools/stock-atlas/pkg/models/domain"
)

// DefaultSectionID is used when a report entry does not name a section.
const DefaultSectionID = "stock"

// Engine is the reconciliation engine: it applies transaction intents to the
// running state of a ledger, synthesizing inferred corrective transactions
// whenever a declared balance disagrees with the computed one.
//
// The engine is pure computation and keeps no per-ledger locks. Callers must
// serialize Apply calls per ledger key; distinct ledgers are independent.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// ApplyResult is the outcome of applying one report to one ledger.
type ApplyResult struct {
	State domain.LedgerState
	// Transactions holds the declared transactions in report order followed
	// by the inferred corrections in the order they were produced, with
	// consecutive sequence numbers continuing from the prior state.
	Transactions []domain.Transaction
	// Skipped counts entries dropped for malformed quantities.
	Skipped int
}

type intent struct {
	action    domain.Action
	subaction string
	quantity  decimal.Decimal
	timestamp time.Time
}

// ApplyReport applies every entry of a report that targets the given ledger
// key, atomically with respect to that ledger: the returned transactions are
// either all appended by the caller or none are.
//
// A missing product id anywhere in the report is a hard validation error. A
// single malformed quantity only drops that entry, with a warning logged, and
// the remaining entries still apply.
func (e *Engine) ApplyReport(
	ctx context.Context,
	state domain.LedgerState,
	report domain.Report,
) (*ApplyResult, error) {
	logger := zerolog.Ctx(ctx)

	for _, entry := range report.Entries {
		if entry.ProductID == "" {
			return nil, &ValidationError{Field: "product_id", Reason: "is required"}
		}
	}

	result := &ApplyResult{State: state}
	var inferred []domain.Transaction

	for _, entry := range report.Entries {
		if keyFor(report.EntityID, entry) != state.Key {
			continue
		}

		in, err := parseEntry(entry)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("ledger", state.Key.String()).
				Str("report", report.Ref).
				Msg("skipping malformed report entry")
			result.Skipped++
			continue
		}

		next, declared, correction := e.applyIntent(result.State, in)
		declared.ID = uuid.NewString()
		declared.ReportRef = report.Ref
		result.Transactions = append(result.Transactions, declared)
		if correction != nil {
			correction.ID = uuid.NewString()
			correction.ReportRef = report.Ref
			inferred = append(inferred, *correction)
		}
		result.State = next
	}

	// Declared transactions are sequenced together; inferred corrections
	// follow them in the order they were produced.
	result.Transactions = append(result.Transactions, inferred...)
	seq := state.LastSequence
	for i := range result.Transactions {
		seq++
		result.Transactions[i].Sequence = seq
	}
	result.State.LastSequence = seq
	result.State.UpdatedAt = report.ReceivedAt

	return result, nil
}

// applyIntent is the per-intent transition function. It returns the new
// ledger state, the declared transaction, and an inferred correction when the
// declared action disagrees with the running balance.
func (e *Engine) applyIntent(
	state domain.LedgerState,
	in intent,
) (domain.LedgerState, domain.Transaction, *domain.Transaction) {
	declared := domain.Transaction{
		Key:       state.Key,
		Action:    in.action,
		Subaction: in.subaction,
		Quantity:  in.quantity,
		Timestamp: in.timestamp,
	}

	var correction *domain.Transaction
	today := in.timestamp.Truncate(24 * time.Hour)

	switch in.action {
	case domain.ActionBalance:
		diff := in.quantity.Sub(state.Balance)
		if !diff.IsZero() {
			correction = e.inferCorrection(state.Key, diff, in.timestamp)
		}
		state.Balance = in.quantity
		if state.Balance.IsPositive() {
			state.StockedOutSince = nil
		} else if state.StockedOutSince == nil {
			state.StockedOutSince = &today
		}

	case domain.ActionStockout, domain.ActionStockoutDays:
		if state.Balance.IsPositive() {
			correction = e.inferCorrection(state.Key, state.Balance.Neg(), in.timestamp)
		}
		state.Balance = decimal.Zero
		since := today
		if in.action == domain.ActionStockoutDays && in.quantity.IsPositive() {
			days := in.quantity.Sub(decimal.NewFromInt(1))
			since = today.Add(-time.Duration(days.IntPart()) * 24 * time.Hour)
		}
		state.StockedOutSince = &since

	case domain.ActionReceipt:
		state.Balance = state.Balance.Add(in.quantity)
		state = clampAndTrack(state, today)

	case domain.ActionConsumption:
		state.Balance = state.Balance.Sub(in.quantity)
		state = clampAndTrack(state, today)
	}

	declared.ResultingBalance = state.Balance
	if correction != nil {
		correction.ResultingBalance = state.Balance
	}
	return state, declared, correction
}

// inferCorrection synthesizes the transaction that explains a jump of diff in
// the running balance: a receipt for a positive jump, a consumption for a
// negative one.
func (e *Engine) inferCorrection(
	key domain.LedgerKey,
	diff decimal.Decimal,
	ts time.Time,
) *domain.Transaction {
	action := domain.ActionReceipt
	if diff.IsNegative() {
		action = domain.ActionConsumption
	}
	return &domain.Transaction{
		Key:       key,
		Action:    action,
		Quantity:  diff.Abs(),
		Timestamp: ts,
		Inferred:  true,
	}
}

// clampAndTrack enforces the non-negative balance invariant after a relative
// adjustment and keeps stocked-out bookkeeping in sync.
func clampAndTrack(state domain.LedgerState, today time.Time) domain.LedgerState {
	if state.Balance.IsPositive() {
		state.StockedOutSince = nil
		return state
	}
	state.Balance = decimal.Zero
	if state.StockedOutSince == nil {
		state.StockedOutSince = &today
	}
	return state
}

// Rebuild replays the declared (non-inferred) transactions of one ledger from
// the empty state, regenerating every inferred correction. The input must
// already be in (timestamp, sequence) order; out-of-order input aborts the
// rebuild with ErrOutOfOrder.
//
// Rebuild is deterministic: the same declared set always produces the same
// ledger content, however many times it runs.
func (e *Engine) Rebuild(
	ctx context.Context,
	key domain.LedgerKey,
	declared []domain.Transaction,
) ([]domain.Transaction, domain.LedgerState, error) {
	if !sort.SliceIsSorted(declared, func(i, j int) bool {
		return lessByOrder(declared[i], declared[j])
	}) {
		return nil, domain.LedgerState{}, fmt.Errorf("rebuild %s: %w", key, ErrOutOfOrder)
	}

	state := domain.EmptyLedgerState(key)
	var rebuilt []domain.Transaction
	for _, tx := range declared {
		if tx.Inferred {
			return nil, domain.LedgerState{}, fmt.Errorf(
				"rebuild %s: inferred transaction %s in declared input", key, tx.ID)
		}
		report := domain.Report{
			Ref:        tx.ReportRef,
			EntityID:   key.EntityID,
			ReceivedAt: tx.Timestamp,
			Entries: []domain.Entry{{
				SectionID: key.SectionID,
				ProductID: key.ProductID,
				Action:    tx.Action,
				Subaction: tx.Subaction,
				Quantity:  tx.Quantity.String(),
				Timestamp: tx.Timestamp,
			}},
		}
		res, err := e.ApplyReport(ctx, state, report)
		if err != nil {
			return nil, domain.LedgerState{}, fmt.Errorf("rebuild %s: %w", key, err)
		}
		rebuilt = append(rebuilt, res.Transactions...)
		state = res.State
	}
	return rebuilt, state, nil
}

func lessByOrder(a, b domain.Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Sequence < b.Sequence
}

func parseEntry(entry domain.Entry) (intent, error) {
	if _, err := domain.ParseAction(string(entry.Action)); err != nil {
		return intent{}, err
	}
	qty, err := decimal.NewFromString(entry.Quantity)
	if err != nil {
		return intent{}, fmt.Errorf("quantity %q is not numeric", entry.Quantity)
	}
	if qty.IsNegative() {
		return intent{}, fmt.Errorf("quantity %s is negative", qty)
	}
	return intent{
		action:    entry.Action,
		subaction: entry.Subaction,
		quantity:  qty,
		timestamp: entry.Timestamp,
	}, nil
}

func keyFor(entityID string, entry domain.Entry) domain.LedgerKey {
	section := entry.SectionID
	if section == "" {
		section = DefaultSectionID
	}
	return domain.LedgerKey{EntityID: entityID, SectionID: section, ProductID: entry.ProductID}
}

// SplitByLedger groups a report's entries by the ledger they target, so a
// caller can apply each group under that ledger's exclusion guarantee.
func SplitByLedger(report domain.Report) map[domain.LedgerKey]domain.Report {
	out := make(map[domain.LedgerKey]domain.Report)
	for _, entry := range report.Entries {
		key := keyFor(report.EntityID, entry)
		sub, ok := out[key]
		if !ok {
			sub = domain.Report{Ref: report.Ref, EntityID: report.EntityID, ReceivedAt: report.ReceivedAt}
		}
		sub.Entries = append(sub.Entries, entry)
		out[key] = sub
	}
	return out
}
