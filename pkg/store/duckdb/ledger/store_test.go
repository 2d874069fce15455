package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/de-tools/stock-atlas/pkg/models/store"
	"github.com/de-tools/stock-atlas/pkg/store/duckdb"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupFixture(t *testing.T) *fixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	s, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{
		db:    db,
		store: s,
	}
}

func testKey() store.LedgerKey {
	return store.LedgerKey{EntityID: "clinic-1", SectionID: "stock", ProductID: "ors"}
}

func testTx(id string, action string, qty string, balance string, ts time.Time, seq int64, inferred bool) store.Transaction {
	return store.Transaction{
		ID:               id,
		EntityID:         "clinic-1",
		SectionID:        "stock",
		ProductID:        "ors",
		Action:           action,
		Quantity:         qty,
		ResultingBalance: balance,
		Timestamp:        ts,
		Sequence:         seq,
		Inferred:         inferred,
		ReportRef:        "r1",
	}
}

func TestLedgerStore_AppendAndGetLedger(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
	}

	t.Run("success - appended rows come back in timestamp then sequence order", func(t *testing.T) {
		txs := []store.Transaction{
			testTx("tx-3", "consumption", "5", "20", day(2), 3, false),
			testTx("tx-1", "balance", "25", "25", day(1), 1, false),
			testTx("tx-2", "receipt", "25", "25", day(1), 2, true),
		}
		require.NoError(t, f.store.Append(ctx, txs))

		got, err := f.store.GetLedger(ctx, testKey())
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "tx-1", got[0].ID)
		assert.Equal(t, "tx-2", got[1].ID)
		assert.Equal(t, "tx-3", got[2].ID)
		assert.Equal(t, "25", got[0].Quantity)
		assert.True(t, got[1].Inferred)
		assert.Equal(t, "r1", got[2].ReportRef)
	})

	t.Run("success - empty append is a no-op", func(t *testing.T) {
		require.NoError(t, f.store.Append(ctx, nil))
	})

	t.Run("success - unknown ledger returns empty slice", func(t *testing.T) {
		got, err := f.store.GetLedger(ctx, store.LedgerKey{
			EntityID: "clinic-2", SectionID: "stock", ProductID: "ors",
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLedgerStore_GetWindow(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
	}

	txs := []store.Transaction{
		testTx("tx-1", "balance", "25", "25", day(1), 1, false),
		testTx("tx-2", "consumption", "5", "20", day(5), 2, false),
		testTx("tx-3", "balance", "20", "20", day(10), 3, false),
	}
	require.NoError(t, f.store.Append(ctx, txs))

	t.Run("success - window bounds are inclusive", func(t *testing.T) {
		got, err := f.store.GetWindow(ctx, testKey(), day(1), day(5))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "tx-1", got[0].ID)
		assert.Equal(t, "tx-2", got[1].ID)
	})

	t.Run("success - window outside the ledger is empty", func(t *testing.T) {
		got, err := f.store.GetWindow(ctx, testKey(), day(11), day(20))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLedgerStore_GetDeclared(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []store.Transaction{
		testTx("tx-1", "balance", "25", "25", ts, 1, false),
		testTx("tx-2", "receipt", "25", "25", ts, 2, true),
		testTx("tx-3", "consumption", "5", "20", ts.AddDate(0, 0, 1), 3, false),
	}
	require.NoError(t, f.store.Append(ctx, txs))

	got, err := f.store.GetDeclared(ctx, testKey())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tx-1", got[0].ID)
	assert.Equal(t, "tx-3", got[1].ID)
}

func TestLedgerStore_Replace(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Append(ctx, []store.Transaction{
		testTx("old-1", "balance", "25", "25", ts, 1, false),
		testTx("old-2", "receipt", "25", "25", ts, 2, true),
	}))

	t.Run("success - replace swaps only the target ledger", func(t *testing.T) {
		other := testTx("other-1", "balance", "10", "10", ts, 1, false)
		other.ProductID = "amoxicillin"
		require.NoError(t, f.store.Append(ctx, []store.Transaction{other}))

		rebuilt := []store.Transaction{
			testTx("new-1", "balance", "25", "25", ts, 1, false),
		}
		require.NoError(t, f.store.Replace(ctx, testKey(), rebuilt))

		got, err := f.store.GetLedger(ctx, testKey())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new-1", got[0].ID)

		otherKey := testKey()
		otherKey.ProductID = "amoxicillin"
		untouched, err := f.store.GetLedger(ctx, otherKey)
		require.NoError(t, err)
		require.Len(t, untouched, 1)
		assert.Equal(t, "other-1", untouched[0].ID)
	})

	t.Run("success - replace joins an ambient transaction", func(t *testing.T) {
		tx, err := f.db.BeginTx(ctx, nil)
		require.NoError(t, err)

		txCtx := duckdb.WithTransaction(ctx, tx)
		require.NoError(t, f.store.Replace(txCtx, testKey(), []store.Transaction{
			testTx("staged-1", "balance", "30", "30", ts, 1, false),
		}))
		require.NoError(t, tx.Rollback())

		got, err := f.store.GetLedger(ctx, testKey())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new-1", got[0].ID)
	})
}

func TestLedgerStore_GetDirtyKeys(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
	}

	t.Run("success - filters on insertion time, not report timestamp", func(t *testing.T) {
		old := testTx("tx-1", "balance", "25", "25", day(1), 1, false)
		old.RecordedAt = day(2)

		// Synced in late with a backdated report timestamp.
		backdated := testTx("tx-2", "balance", "10", "10", day(1), 1, false)
		backdated.ProductID = "amoxicillin"
		backdated.RecordedAt = day(10)

		require.NoError(t, f.store.Append(ctx, []store.Transaction{old, backdated}))

		keys, err := f.store.GetDirtyKeys(ctx, day(5))
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, "amoxicillin", keys[0].ProductID)

		keys, err = f.store.GetDirtyKeys(ctx, day(1))
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("success - plain appends are visible to a recent watermark", func(t *testing.T) {
		fresh := testTx("tx-3", "balance", "7", "7", day(1), 1, false)
		fresh.ProductID = "zinc"
		require.NoError(t, f.store.Append(ctx, []store.Transaction{fresh}))

		keys, err := f.store.GetDirtyKeys(ctx, time.Now().UTC().Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, "zinc", keys[0].ProductID)
	})
}

func TestNewStore_NilDB(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}
