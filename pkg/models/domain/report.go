package domain

import "time"

// Report is one incoming stock report: an ordered batch of transaction
// intents from a single source (SMS, form submission, sync), applied
// atomically per ledger.
type Report struct {
	// Ref is an opaque link back to the originating report document.
	Ref        string
	EntityID   string
	ReceivedAt time.Time
	Entries    []Entry
}

// Entry is a single transaction intent within a report. Quantity is kept as
// the raw reported string; parsing happens at apply time so one malformed
// entry can be skipped without invalidating its siblings.
type Entry struct {
	SectionID string
	ProductID string
	Action    Action
	Subaction string
	Quantity  string
	Timestamp time.Time
}
