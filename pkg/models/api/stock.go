package api

import "time"

// Report is the ingest payload: one batch of transaction intents.
type Report struct {
	Ref     string  `json:"ref"`
	Entries []Entry `json:"entries"`
}

type Entry struct {
	SectionID string    `json:"section_id,omitempty"`
	ProductID string    `json:"product_id"`
	Action    string    `json:"action"`
	Subaction string    `json:"subaction,omitempty"`
	Quantity  string    `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

type ApplyResult struct {
	Ref          string        `json:"ref"`
	Transactions []Transaction `json:"transactions"`
	Skipped      int           `json:"skipped_entries,omitempty"`
}

type Transaction struct {
	ID               string    `json:"id"`
	SectionID        string    `json:"section_id"`
	ProductID        string    `json:"product_id"`
	Action           string    `json:"action"`
	Subaction        string    `json:"subaction,omitempty"`
	Quantity         string    `json:"quantity"`
	ResultingBalance string    `json:"resulting_balance"`
	Timestamp        time.Time `json:"timestamp"`
	Sequence         int64     `json:"sequence"`
	Inferred         bool      `json:"inferred,omitempty"`
	ReportRef        string    `json:"report_ref,omitempty"`
}

type Ledger struct {
	EntityID     string        `json:"entity_id"`
	SectionID    string        `json:"section_id"`
	ProductID    string        `json:"product_id"`
	Transactions []Transaction `json:"transactions"`
}

type ConsumptionRate struct {
	EntityID  string    `json:"entity_id"`
	SectionID string    `json:"section_id"`
	ProductID string    `json:"product_id"`
	AsOf      time.Time `json:"as_of"`
	// DailyRate is absent when the statistical gates were not met.
	DailyRate *string `json:"daily_rate,omitempty"`
	NoData    bool    `json:"no_data,omitempty"`
}

type StockStatus struct {
	EntityID        string     `json:"entity_id"`
	SectionID       string     `json:"section_id"`
	ProductID       string     `json:"product_id"`
	Balance         string     `json:"balance"`
	StockedOutSince *time.Time `json:"stocked_out_since,omitempty"`
	DailyRate       *string    `json:"daily_rate,omitempty"`
	MonthsRemaining *string    `json:"months_remaining,omitempty"`
	Category        string     `json:"category"`
}
