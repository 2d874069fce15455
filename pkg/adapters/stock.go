package adapters

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/de-tools/stock-atlas/pkg/models/api"
	"github.com/de-tools/stock-atlas/pkg/models/domain"
	"github.com/de-tools/stock-atlas/pkg/models/store"
)

func MapDomainKeyToStore(key domain.LedgerKey) store.LedgerKey {
	return store.LedgerKey{
		EntityID:  key.EntityID,
		SectionID: key.SectionID,
		ProductID: key.ProductID,
	}
}

func MapDomainTransactionToStore(tx domain.Transaction) store.Transaction {
	return store.Transaction{
		ID:               tx.ID,
		EntityID:         tx.Key.EntityID,
		SectionID:        tx.Key.SectionID,
		ProductID:        tx.Key.ProductID,
		Action:           string(tx.Action),
		Subaction:        tx.Subaction,
		Quantity:         tx.Quantity.String(),
		ResultingBalance: tx.ResultingBalance.String(),
		Timestamp:        tx.Timestamp,
		Sequence:         tx.Sequence,
		Inferred:         tx.Inferred,
		ReportRef:        tx.ReportRef,
	}
}

func MapStoreTransactionToDomain(tx store.Transaction) (domain.Transaction, error) {
	action, err := domain.ParseAction(tx.Action)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	qty, err := decimal.NewFromString(tx.Quantity)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s quantity: %w", tx.ID, err)
	}
	balance, err := decimal.NewFromString(tx.ResultingBalance)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s resulting balance: %w", tx.ID, err)
	}
	return domain.Transaction{
		ID: tx.ID,
		Key: domain.LedgerKey{
			EntityID:  tx.EntityID,
			SectionID: tx.SectionID,
			ProductID: tx.ProductID,
		},
		Action:           action,
		Subaction:        tx.Subaction,
		Quantity:         qty,
		ResultingBalance: balance,
		Timestamp:        tx.Timestamp,
		Sequence:         tx.Sequence,
		Inferred:         tx.Inferred,
		ReportRef:        tx.ReportRef,
	}, nil
}

func MapStoreTransactionsToDomain(txs []store.Transaction) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		mapped, err := MapStoreTransactionToDomain(tx)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

func MapDomainStateToStore(state domain.LedgerState) store.LedgerState {
	return store.LedgerState{
		EntityID:        state.Key.EntityID,
		SectionID:       state.Key.SectionID,
		ProductID:       state.Key.ProductID,
		Balance:         state.Balance.String(),
		StockedOutSince: state.StockedOutSince,
		LastSequence:    state.LastSequence,
		UpdatedAt:       state.UpdatedAt,
	}
}

func MapStoreStateToDomain(state store.LedgerState) (domain.LedgerState, error) {
	balance, err := decimal.NewFromString(state.Balance)
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("ledger state balance: %w", err)
	}
	return domain.LedgerState{
		Key: domain.LedgerKey{
			EntityID:  state.EntityID,
			SectionID: state.SectionID,
			ProductID: state.ProductID,
		},
		Balance:         balance,
		StockedOutSince: state.StockedOutSince,
		LastSequence:    state.LastSequence,
		UpdatedAt:       state.UpdatedAt,
	}, nil
}

func MapApiReportToDomain(entityID string, report api.Report) (domain.Report, error) {
	out := domain.Report{Ref: report.Ref, EntityID: entityID}
	for i, entry := range report.Entries {
		action, err := domain.ParseAction(entry.Action)
		if err != nil {
			return domain.Report{}, fmt.Errorf("entry %d: %w", i, err)
		}
		out.Entries = append(out.Entries, domain.Entry{
			SectionID: entry.SectionID,
			ProductID: entry.ProductID,
			Action:    action,
			Subaction: entry.Subaction,
			Quantity:  entry.Quantity,
			Timestamp: entry.Timestamp,
		})
	}
	return out, nil
}

func MapDomainTransactionToApi(tx domain.Transaction) api.Transaction {
	return api.Transaction{
		ID:               tx.ID,
		SectionID:        tx.Key.SectionID,
		ProductID:        tx.Key.ProductID,
		Action:           string(tx.Action),
		Subaction:        tx.Subaction,
		Quantity:         tx.Quantity.String(),
		ResultingBalance: tx.ResultingBalance.String(),
		Timestamp:        tx.Timestamp,
		Sequence:         tx.Sequence,
		Inferred:         tx.Inferred,
		ReportRef:        tx.ReportRef,
	}
}

func MapDomainTransactionsToApi(txs []domain.Transaction) []api.Transaction {
	out := make([]api.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, MapDomainTransactionToApi(tx))
	}
	return out
}
