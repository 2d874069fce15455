package stock

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/de-tools/stock-atlas/pkg/adapters"
	"github.com/de-tools/stock-atlas/pkg/models/api"
	"github.com/de-tools/stock-atlas/pkg/models/domain"
	"github.com/de-tools/stock-atlas/pkg/services/config"
	"github.com/de-tools/stock-atlas/pkg/services/ledger"
)

type LedgerService interface {
	ApplyReport(ctx context.Context, report domain.Report) (*ledger.ReportResult, error)
	GetLedger(ctx context.Context, key domain.LedgerKey) ([]domain.Transaction, error)
	Rebuild(ctx context.Context, key domain.LedgerKey) (domain.LedgerState, error)
}

type ConsumptionService interface {
	DailyConsumption(
		ctx context.Context,
		key domain.LedgerKey,
		asOf time.Time,
		cfg domain.ConsumptionConfig,
	) (*decimal.Decimal, error)
}

type StatusService interface {
	GetStatus(
		ctx context.Context,
		key domain.LedgerKey,
		asOf time.Time,
		consumptionCfg domain.ConsumptionConfig,
		thresholds domain.ThresholdConfig,
	) (*domain.ProductStatus, error)
}

type Handler struct {
	ledgers     LedgerService
	consumption ConsumptionService
	status      StatusService
	settings    config.Registry
}

func NewHandler(
	ledgers LedgerService,
	consumption ConsumptionService,
	status StatusService,
	settings config.Registry,
) *Handler {
	return &Handler{
		ledgers:     ledgers,
		consumption: consumption,
		status:      status,
		settings:    settings,
	}
}

func (h *Handler) ApplyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	entity := chi.URLParam(r, "entity")

	var payload api.Report
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid report payload", http.StatusBadRequest)
		return
	}

	report, err := adapters.MapApiReportToDomain(entity, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report.ReceivedAt = time.Now().UTC()

	result, err := h.ledgers.ApplyReport(ctx, report)
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		logger.Error().Err(err).Str("entity", entity).Msg("failed to apply report")
		http.Error(w, "failed to apply report", http.StatusInternalServerError)
		return
	}

	respond(w, logger, api.ApplyResult{
		Ref:          report.Ref,
		Transactions: adapters.MapDomainTransactionsToApi(result.Transactions),
		Skipped:      result.Skipped,
	})
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	key := keyFromRequest(r)

	txs, err := h.ledgers.GetLedger(ctx, key)
	if err != nil {
		logger.Error().Err(err).Str("ledger", key.String()).Msg("failed to load ledger")
		http.Error(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}

	respond(w, logger, api.Ledger{
		EntityID:     key.EntityID,
		SectionID:    key.SectionID,
		ProductID:    key.ProductID,
		Transactions: adapters.MapDomainTransactionsToApi(txs),
	})
}

func (h *Handler) GetConsumption(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	key := keyFromRequest(r)

	asOf, err := asOfFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg := h.settings.ConsumptionConfig(ctx, r.URL.Query().Get("type"))

	rate, err := h.consumption.DailyConsumption(ctx, key, asOf, cfg)
	if err != nil {
		logger.Error().Err(err).Str("ledger", key.String()).Msg("failed to estimate consumption")
		http.Error(w, "failed to estimate consumption", http.StatusInternalServerError)
		return
	}

	response := api.ConsumptionRate{
		EntityID:  key.EntityID,
		SectionID: key.SectionID,
		ProductID: key.ProductID,
		AsOf:      asOf,
	}
	if rate == nil {
		response.NoData = true
	} else {
		s := rate.String()
		response.DailyRate = &s
	}
	respond(w, logger, response)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	key := keyFromRequest(r)

	asOf, err := asOfFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entityType := r.URL.Query().Get("type")
	cfg := h.settings.ConsumptionConfig(ctx, entityType)
	thresholds := h.settings.Thresholds(ctx, entityType)

	result, err := h.status.GetStatus(ctx, key, asOf, cfg, thresholds)
	if err != nil {
		logger.Error().Err(err).Str("ledger", key.String()).Msg("failed to compute status")
		http.Error(w, "failed to compute status", http.StatusInternalServerError)
		return
	}

	response := api.StockStatus{
		EntityID:        key.EntityID,
		SectionID:       key.SectionID,
		ProductID:       key.ProductID,
		Balance:         result.Balance.String(),
		StockedOutSince: result.StockedOutSince,
		Category:        string(result.Category),
	}
	if result.DailyRate != nil {
		s := result.DailyRate.String()
		response.DailyRate = &s
	}
	if result.MonthsRemaining != nil {
		s := result.MonthsRemaining.String()
		response.MonthsRemaining = &s
	}
	respond(w, logger, response)
}

func (h *Handler) RebuildLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	key := keyFromRequest(r)

	state, err := h.ledgers.Rebuild(ctx, key)
	if err != nil {
		if errors.Is(err, ledger.ErrOutOfOrder) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		logger.Error().Err(err).Str("ledger", key.String()).Msg("failed to rebuild ledger")
		http.Error(w, "failed to rebuild ledger", http.StatusInternalServerError)
		return
	}

	respond(w, logger, api.StockStatus{
		EntityID:        key.EntityID,
		SectionID:       key.SectionID,
		ProductID:       key.ProductID,
		Balance:         state.Balance.String(),
		StockedOutSince: state.StockedOutSince,
	})
}

func keyFromRequest(r *http.Request) domain.LedgerKey {
	return domain.LedgerKey{
		EntityID:  chi.URLParam(r, "entity"),
		SectionID: chi.URLParam(r, "section"),
		ProductID: chi.URLParam(r, "product"),
	}
}

func asOfFromRequest(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	asOf, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("as_of must be RFC 3339")
	}
	return asOf, nil
}

func respond(w http.ResponseWriter, logger *zerolog.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
