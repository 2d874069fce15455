package store

import "time"

// LedgerKey identifies one ledger in storage.
type LedgerKey struct {
	EntityID  string
	SectionID string
	ProductID string
}

// Transaction is a ledger transaction row. Quantity and ResultingBalance are
// carried as decimal strings so values round-trip exactly.
//
// Timestamp is the report's logical time and may be backdated; RecordedAt is
// when the row landed in storage, and is what change sweeps filter on.
type Transaction struct {
	ID               string
	EntityID         string
	SectionID        string
	ProductID        string
	Action           string
	Subaction        string
	Quantity         string
	ResultingBalance string
	Timestamp        time.Time
	Sequence         int64
	Inferred         bool
	ReportRef        string
	RecordedAt       time.Time
}

// LedgerState is the cached running-balance snapshot per ledger.
type LedgerState struct {
	EntityID        string
	SectionID       string
	ProductID       string
	Balance         string
	StockedOutSince *time.Time
	LastSequence    int64
	UpdatedAt       time.Time
}

// ProjectionState tracks the watermark of the projection runner per entity.
type ProjectionState struct {
	EntityID        string
	LastProcessedAt *time.Time
}
