package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/stock-atlas/pkg/models/domain"
	"github.com/de-tools/stock-atlas/pkg/store/duckdb"
	ledgerstore "github.com/de-tools/stock-atlas/pkg/store/duckdb/ledger"
	statestore "github.com/de-tools/stock-atlas/pkg/store/duckdb/state"
)

type serviceFixture struct {
	db      *sql.DB
	service *Service
}

func setupService(t *testing.T) *serviceFixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	ledgers, err := ledgerstore.NewStore(db)
	require.NoError(t, err)
	states, err := statestore.NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &serviceFixture{
		db:      db,
		service: NewService(db, ledgers, states),
	}
}

func TestService_ApplyReport(t *testing.T) {
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
	}
	key := domain.LedgerKey{EntityID: "clinic-1", SectionID: DefaultSectionID, ProductID: "ors"}

	t.Run("success - report persists transactions and state", func(t *testing.T) {
		f := setupService(t)

		result, err := f.service.ApplyReport(ctx, domain.Report{
			Ref:      "r1",
			EntityID: "clinic-1",
			Entries: []domain.Entry{
				{ProductID: "ors", Action: domain.ActionBalance, Quantity: "25", Timestamp: day(1)},
				{ProductID: "ors", Action: domain.ActionConsumption, Quantity: "5", Timestamp: day(2)},
			},
		})
		require.NoError(t, err)
		// First balance on an empty ledger produces an inferred receipt.
		require.Len(t, result.Transactions, 3)
		require.Len(t, result.States, 1)
		assert.True(t, result.States[0].Balance.Equal(decimal.NewFromInt(20)))

		stored, err := f.service.GetLedger(ctx, key)
		require.NoError(t, err)
		require.Len(t, stored, 3)
		assert.Equal(t, result.Transactions[0].ID, stored[0].ID)

		state, err := f.service.GetState(ctx, key)
		require.NoError(t, err)
		assert.True(t, state.Balance.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, int64(3), state.LastSequence)
	})

	t.Run("success - state carries over between reports", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.ApplyReport(ctx, domain.Report{
			Ref:      "r1",
			EntityID: "clinic-1",
			Entries: []domain.Entry{
				{ProductID: "ors", Action: domain.ActionBalance, Quantity: "25", Timestamp: day(1)},
			},
		})
		require.NoError(t, err)

		result, err := f.service.ApplyReport(ctx, domain.Report{
			Ref:      "r2",
			EntityID: "clinic-1",
			Entries: []domain.Entry{
				{ProductID: "ors", Action: domain.ActionBalance, Quantity: "15", Timestamp: day(6)},
			},
		})
		require.NoError(t, err)

		// Lower balance reconciles via an inferred consumption of 10.
		require.Len(t, result.Transactions, 2)
		inferred := result.Transactions[1]
		assert.True(t, inferred.Inferred)
		assert.Equal(t, domain.ActionConsumption, inferred.Action)
		assert.True(t, inferred.Quantity.Equal(decimal.NewFromInt(10)))

		state, err := f.service.GetState(ctx, key)
		require.NoError(t, err)
		assert.True(t, state.Balance.Equal(decimal.NewFromInt(15)))
	})

	t.Run("success - one report can touch several ledgers", func(t *testing.T) {
		f := setupService(t)

		result, err := f.service.ApplyReport(ctx, domain.Report{
			Ref:      "r1",
			EntityID: "clinic-1",
			Entries: []domain.Entry{
				{ProductID: "ors", Action: domain.ActionBalance, Quantity: "25", Timestamp: day(1)},
				{ProductID: "amoxicillin", Action: domain.ActionBalance, Quantity: "40", Timestamp: day(1)},
			},
		})
		require.NoError(t, err)
		require.Len(t, result.States, 2)

		other := key
		other.ProductID = "amoxicillin"
		state, err := f.service.GetState(ctx, other)
		require.NoError(t, err)
		assert.True(t, state.Balance.Equal(decimal.NewFromInt(40)))
	})

	t.Run("error - missing entity id leaves the store untouched", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.ApplyReport(ctx, domain.Report{Ref: "r1"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "entity_id", verr.Field)

		stored, err := f.service.GetLedger(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("error - invalid entry rolls back the whole report", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.ApplyReport(ctx, domain.Report{
			Ref:      "r1",
			EntityID: "clinic-1",
			Entries: []domain.Entry{
				{ProductID: "ors", Action: domain.ActionBalance, Quantity: "25", Timestamp: day(1)},
				{Action: domain.ActionBalance, Quantity: "10", Timestamp: day(1)},
			},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		stored, err := f.service.GetLedger(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestService_Rebuild(t *testing.T) {
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
	}
	key := domain.LedgerKey{EntityID: "clinic-1", SectionID: DefaultSectionID, ProductID: "ors"}

	t.Run("success - rebuild reproduces the applied ledger", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.ApplyReport(ctx, domain.Report{
			Ref:      "r1",
			EntityID: "clinic-1",
			Entries: []domain.Entry{
				{ProductID: "ors", Action: domain.ActionBalance, Quantity: "25", Timestamp: day(1)},
				{ProductID: "ors", Action: domain.ActionConsumption, Quantity: "5", Timestamp: day(3)},
				{ProductID: "ors", Action: domain.ActionBalance, Quantity: "15", Timestamp: day(6)},
			},
		})
		require.NoError(t, err)

		before, err := f.service.GetLedger(ctx, key)
		require.NoError(t, err)

		state, err := f.service.Rebuild(ctx, key)
		require.NoError(t, err)
		assert.True(t, state.Balance.Equal(decimal.NewFromInt(15)))

		after, err := f.service.GetLedger(ctx, key)
		require.NoError(t, err)
		require.Len(t, after, len(before))
		for i := range after {
			assert.Equal(t, before[i].Action, after[i].Action, "transaction %d", i)
			assert.Equal(t, before[i].Inferred, after[i].Inferred, "transaction %d", i)
			assert.True(t, before[i].Quantity.Equal(after[i].Quantity), "transaction %d", i)
			assert.True(t, before[i].ResultingBalance.Equal(after[i].ResultingBalance), "transaction %d", i)
		}
	})

	t.Run("success - rebuilding an empty ledger yields the empty state", func(t *testing.T) {
		f := setupService(t)

		state, err := f.service.Rebuild(ctx, key)
		require.NoError(t, err)
		assert.True(t, state.Balance.IsZero())
		assert.Equal(t, int64(0), state.LastSequence)
	})
}
