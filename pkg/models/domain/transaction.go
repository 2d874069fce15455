package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the closed set of ledger transaction kinds.
type Action string

const (
	// ActionBalance declares an absolute stock-on-hand value (a checkpoint).
	ActionBalance Action = "balance"
	// ActionReceipt is a positive stock delta.
	ActionReceipt Action = "receipt"
	// ActionConsumption is a negative stock delta, carried as a magnitude.
	ActionConsumption Action = "consumption"
	// ActionStockout declares the product stocked out as of the report.
	ActionStockout Action = "stockout"
	// ActionStockoutDays declares the product stocked out for the last N days.
	ActionStockoutDays Action = "stockedoutfor"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionBalance, ActionReceipt, ActionConsumption, ActionStockout, ActionStockoutDays:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// LedgerKey identifies one ledger: the transaction history of a single
// product within a section of an entity.
type LedgerKey struct {
	EntityID  string
	SectionID string
	ProductID string
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EntityID, k.SectionID, k.ProductID)
}

// Transaction is an immutable fact in a ledger. Ordered by (Timestamp,
// Sequence), the transactions of a ledger are the sole source of truth;
// ResultingBalance is a pure function of the previous transaction's
// ResultingBalance and the applied action.
type Transaction struct {
	ID               string
	Key              LedgerKey
	Action           Action
	Subaction        string
	Quantity         decimal.Decimal
	ResultingBalance decimal.Decimal
	Timestamp        time.Time
	Sequence         int64
	Inferred         bool
	ReportRef        string
}

// IsStockout reports whether this transaction means the product was out of
// stock: an explicit stockout, a zero-valued balance, or a "stocked out for
// N days" report with N > 0.
func (t Transaction) IsStockout() bool {
	switch t.Action {
	case ActionStockout:
		return true
	case ActionBalance:
		return t.Quantity.IsZero()
	case ActionStockoutDays:
		return t.Quantity.IsPositive()
	default:
		return false
	}
}

// IsCheckpoint reports whether this transaction closes and opens consumption
// periods: a balance declaration that is not itself a stockout.
func (t Transaction) IsCheckpoint() bool {
	return t.Action == ActionBalance && !t.IsStockout()
}

// LedgerState is the cached tail of a ledger: the running balance after the
// last applied transaction plus stockout bookkeeping. It is derived data,
// fully reconstructable by replaying the ledger from empty state.
type LedgerState struct {
	Key             LedgerKey
	Balance         decimal.Decimal
	StockedOutSince *time.Time
	LastSequence    int64
	UpdatedAt       time.Time
}

// EmptyLedgerState is the initial state of a ledger before any transaction.
func EmptyLedgerState(key LedgerKey) LedgerState {
	return LedgerState{Key: key, Balance: decimal.Zero}
}
