package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/stock-atlas/pkg/models/store"
	"github.com/de-tools/stock-atlas/pkg/store/duckdb"
)

// Store is the durable append-only transaction ledger. Append is the only
// regular write; Replace exists solely for atomic rebuild swaps.
type Store interface {
	Append(ctx context.Context, txs []store.Transaction) error
	GetLedger(ctx context.Context, key store.LedgerKey) ([]store.Transaction, error)
	GetWindow(ctx context.Context, key store.LedgerKey, start, end time.Time) ([]store.Transaction, error)
	GetDeclared(ctx context.Context, key store.LedgerKey) ([]store.Transaction, error)
	Replace(ctx context.Context, key store.LedgerKey, txs []store.Transaction) error
	GetDirtyKeys(ctx context.Context, since time.Time) ([]store.LedgerKey, error)
}

type ledgerStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &ledgerStore{db: db}, nil
}

const insertQuery = `
	INSERT INTO transactions (
		id, entity_id, section_id, product_id, action, subaction,
		quantity, resulting_balance, ts, seq, inferred, report_ref, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = `
	id, entity_id, section_id, product_id, action, subaction,
	quantity, resulting_balance, ts, seq, inferred, report_ref, recorded_at`

func (s *ledgerStore) Append(ctx context.Context, txs []store.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx := duckdb.GetTransaction(ctx)

	var stmt *sql.Stmt
	var err error
	if tx == nil {
		stmt, err = s.db.PrepareContext(ctx, insertQuery)
	} else {
		stmt, err = tx.PrepareContext(ctx, insertQuery)
	}
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range txs {
		recordedAt := t.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = now
		}
		_, err = stmt.ExecContext(ctx,
			t.ID,
			t.EntityID,
			t.SectionID,
			t.ProductID,
			t.Action,
			t.Subaction,
			t.Quantity,
			t.ResultingBalance,
			t.Timestamp,
			t.Sequence,
			t.Inferred,
			t.ReportRef,
			recordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	return nil
}

func (s *ledgerStore) GetLedger(ctx context.Context, key store.LedgerKey) ([]store.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE entity_id = ? AND section_id = ? AND product_id = ?
		ORDER BY ts, seq
	`, selectColumns)

	rows, err := s.db.QueryContext(ctx, query, key.EntityID, key.SectionID, key.ProductID)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()
	return scanTransactionRows(rows)
}

func (s *ledgerStore) GetWindow(
	ctx context.Context,
	key store.LedgerKey,
	start, end time.Time,
) ([]store.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE entity_id = ? AND section_id = ? AND product_id = ?
		  AND ts >= ? AND ts <= ?
		ORDER BY ts, seq
	`, selectColumns)

	rows, err := s.db.QueryContext(ctx, query,
		key.EntityID, key.SectionID, key.ProductID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query ledger window: %w", err)
	}
	defer rows.Close()
	return scanTransactionRows(rows)
}

func (s *ledgerStore) GetDeclared(ctx context.Context, key store.LedgerKey) ([]store.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE entity_id = ? AND section_id = ? AND product_id = ? AND NOT inferred
		ORDER BY ts, seq
	`, selectColumns)

	rows, err := s.db.QueryContext(ctx, query, key.EntityID, key.SectionID, key.ProductID)
	if err != nil {
		return nil, fmt.Errorf("query declared transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactionRows(rows)
}

// Replace atomically swaps the stored ledger for a rebuilt one. The delete
// and the inserts share one SQL transaction, so readers never observe a
// partially rebuilt ledger. When the context already carries a transaction,
// Replace joins it instead of committing on its own.
func (s *ledgerStore) Replace(ctx context.Context, key store.LedgerKey, txs []store.Transaction) error {
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		return s.replaceIn(ctx, tx, key, txs)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.replaceIn(duckdb.WithTransaction(ctx, tx), tx, key, txs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ledgerStore) replaceIn(ctx context.Context, tx *sql.Tx, key store.LedgerKey, txs []store.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE entity_id = ? AND section_id = ? AND product_id = ?
	`, key.EntityID, key.SectionID, key.ProductID)
	if err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return s.Append(ctx, txs)
}

// GetDirtyKeys lists the ledgers with rows recorded at or after the
// watermark, for the projection runner. The filter is on insertion time, not
// the logical transaction timestamp: external sync lands rows with backdated
// timestamps, and those must still show up in the next sweep.
func (s *ledgerStore) GetDirtyKeys(ctx context.Context, since time.Time) ([]store.LedgerKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT entity_id, section_id, product_id
		FROM transactions
		WHERE recorded_at >= ?
		ORDER BY entity_id, section_id, product_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query dirty ledgers: %w", err)
	}
	defer rows.Close()

	keys := make([]store.LedgerKey, 0)
	for rows.Next() {
		var k store.LedgerKey
		if err := rows.Scan(&k.EntityID, &k.SectionID, &k.ProductID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanTransactionRows(rows *sql.Rows) ([]store.Transaction, error) {
	txs := make([]store.Transaction, 0)
	for rows.Next() {
		var (
			t         store.Transaction
			subaction sql.NullString
			reportRef sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.EntityID, &t.SectionID, &t.ProductID, &t.Action, &subaction,
			&t.Quantity, &t.ResultingBalance, &t.Timestamp, &t.Sequence, &t.Inferred, &reportRef,
			&t.RecordedAt,
		); err != nil {
			return nil, err
		}
		t.Subaction = subaction.String
		t.ReportRef = reportRef.String
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
