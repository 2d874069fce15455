package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const TransactionsSchema = `
	CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR NOT NULL,
		entity_id VARCHAR NOT NULL,
		section_id VARCHAR NOT NULL,
		product_id VARCHAR NOT NULL,
		action VARCHAR NOT NULL,
		subaction VARCHAR,
		quantity VARCHAR NOT NULL,
		resulting_balance VARCHAR NOT NULL,
		ts TIMESTAMP NOT NULL,
		seq BIGINT NOT NULL,
		inferred BOOLEAN NOT NULL,
		report_ref VARCHAR,
		recorded_at TIMESTAMP NOT NULL,
		PRIMARY KEY (entity_id, section_id, product_id, seq)
	);
`

const LedgerStateSchema = `
	CREATE TABLE IF NOT EXISTS ledger_state (
		entity_id VARCHAR NOT NULL,
		section_id VARCHAR NOT NULL,
		product_id VARCHAR NOT NULL,
		balance VARCHAR NOT NULL,
		stocked_out_since TIMESTAMP NULL,
		last_seq BIGINT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (entity_id, section_id, product_id)
	);
`

const ProjectionStateSchema = `
	CREATE TABLE IF NOT EXISTS projection_state (
		entity_id VARCHAR NOT NULL,
		last_processed_at TIMESTAMP NULL,
		PRIMARY KEY (entity_id)
	);
`

var bootQueries = []string{
	TransactionsSchema,
	LedgerStateSchema,
	ProjectionStateSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}

type txKey struct{}

// WithTransaction binds an open SQL transaction to the context so stores
// participate in the caller's atomic scope.
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func GetTransaction(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}
