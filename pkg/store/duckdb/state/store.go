package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/stock-atlas/pkg/models/store"
	"github.com/de-tools/stock-atlas/pkg/store/duckdb"
)

// Store persists the derived LedgerState snapshots and the projection
// runner's per-entity watermark.
type Store interface {
	Get(ctx context.Context, key store.LedgerKey) (*store.LedgerState, error)
	Upsert(ctx context.Context, state store.LedgerState) error
	ListByEntity(ctx context.Context, entityID string) ([]store.LedgerState, error)
	GetProjection(ctx context.Context, entityID string) (*store.ProjectionState, error)
	UpdateProjection(ctx context.Context, entityID string, at time.Time) error
}

type stateStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &stateStore{db: db}, nil
}

func (s *stateStore) Get(ctx context.Context, key store.LedgerKey) (*store.LedgerState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_id, section_id, product_id, balance, stocked_out_since, last_seq, updated_at
		FROM ledger_state
		WHERE entity_id = ? AND section_id = ? AND product_id = ?
	`, key.EntityID, key.SectionID, key.ProductID)

	st, err := scanState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger state: %w", err)
	}
	return st, nil
}

func (s *stateStore) Upsert(ctx context.Context, state store.LedgerState) error {
	query := `
		INSERT INTO ledger_state (
			entity_id, section_id, product_id, balance, stocked_out_since, last_seq, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_id, section_id, product_id) DO UPDATE SET
			balance = excluded.balance,
			stocked_out_since = excluded.stocked_out_since,
			last_seq = excluded.last_seq,
			updated_at = excluded.updated_at`

	args := []interface{}{
		state.EntityID,
		state.SectionID,
		state.ProductID,
		state.Balance,
		state.StockedOutSince,
		state.LastSequence,
		state.UpdatedAt,
	}

	var err error
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("upsert ledger state: %w", err)
	}
	return nil
}

func (s *stateStore) ListByEntity(ctx context.Context, entityID string) ([]store.LedgerState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, section_id, product_id, balance, stocked_out_since, last_seq, updated_at
		FROM ledger_state
		WHERE entity_id = ?
		ORDER BY section_id, product_id
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list ledger states: %w", err)
	}
	defer rows.Close()

	states := make([]store.LedgerState, 0)
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *st)
	}
	return states, rows.Err()
}

func (s *stateStore) GetProjection(ctx context.Context, entityID string) (*store.ProjectionState, error) {
	var (
		ps   store.ProjectionState
		last sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT entity_id, last_processed_at FROM projection_state WHERE entity_id = ?
	`, entityID).Scan(&ps.EntityID, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get projection state: %w", err)
	}
	if last.Valid {
		t := last.Time
		ps.LastProcessedAt = &t
	}
	return &ps, nil
}

func (s *stateStore) UpdateProjection(ctx context.Context, entityID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projection_state (entity_id, last_processed_at) VALUES (?, ?)
		ON CONFLICT (entity_id) DO UPDATE SET last_processed_at = excluded.last_processed_at
	`, entityID, at)
	if err != nil {
		return fmt.Errorf("update projection state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*store.LedgerState, error) {
	var (
		st    store.LedgerState
		since sql.NullTime
	)
	if err := row.Scan(
		&st.EntityID, &st.SectionID, &st.ProductID,
		&st.Balance, &since, &st.LastSequence, &st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if since.Valid {
		t := since.Time
		st.StockedOutSince = &t
	}
	return &st, nil
}
