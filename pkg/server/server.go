package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	handlers "github.com/de-tools/stock-atlas/pkg/handlers/stock"
	stockmiddleware "github.com/de-tools/stock-atlas/pkg/server/middleware"
	"github.com/de-tools/stock-atlas/pkg/services/config"
)

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
}

type Dependencies struct {
	Ledgers     handlers.LedgerService
	Consumption handlers.ConsumptionService
	Status      handlers.StatusService
	Settings    config.Registry
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func ConfigureRouter(logger zerolog.Logger, deps Dependencies) *chi.Mux {
	handler := handlers.NewHandler(deps.Ledgers, deps.Consumption, deps.Status, deps.Settings)

	router := chi.NewRouter()
	router.Use(stockmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1/entities/{entity}", func(r chi.Router) {
		r.Post("/reports", handler.ApplyReport)
		r.Route("/sections/{section}/products/{product}", func(r chi.Router) {
			r.Get("/ledger", handler.GetLedger)
			r.Get("/consumption", handler.GetConsumption)
			r.Get("/status", handler.GetStatus)
			r.Post("/rebuild", handler.RebuildLedger)
		})
	})

	return router
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	router := ConfigureRouter(logger, config.Dependencies)

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: router,
		},
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
