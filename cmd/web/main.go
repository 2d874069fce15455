package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/stock-atlas/pkg/server"
	"github.com/de-tools/stock-atlas/pkg/services/config"
	"github.com/de-tools/stock-atlas/pkg/services/consumption"
	ledgersvc "github.com/de-tools/stock-atlas/pkg/services/ledger"
	"github.com/de-tools/stock-atlas/pkg/services/status"
	"github.com/de-tools/stock-atlas/pkg/services/workflow"
	"github.com/de-tools/stock-atlas/pkg/store/duckdb"
	ledgerstore "github.com/de-tools/stock-atlas/pkg/store/duckdb/ledger"
	statestore "github.com/de-tools/stock-atlas/pkg/store/duckdb/state"
)

var (
	dbPath       string
	settingsPath string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for Stock Atlas",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVar(&dbPath, "db", "stock-atlas.db", "Path to the DuckDB database")
	rootCmd.Flags().StringVar(&settingsPath, "settings", "",
		"Path to the settings profile (defaults apply when omitted)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	settings := config.DefaultRegistry()
	if settingsPath != "" {
		loaded, err := config.LoadRegistry(settingsPath)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		settings = loaded
		logger.Info().Msgf("Settings profile at `%s` successfully loaded.", settingsPath)
	}

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
	if err != nil {
		return fmt.Errorf("failed to create DuckDB instance: %w", err)
	}

	ledgers, err := ledgerstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create ledger store: %w", err)
	}
	states, err := statestore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}

	estimator := consumption.NewEstimator(ledgers)
	runner := workflow.NewRunner(ledgers, states)
	go runner.Run(ctx)
	go func() {
		for p := range runner.Progress() {
			logger.Debug().
				Int("processed", p.ProcessedLedgers).
				Int("total", p.TotalLedgers).
				Msg("projection progress")
		}
	}()

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")

	if host == "" || port == "" {
		logger.Error().Msgf("Missing server configuration from .env file")
		os.Exit(1)
	}

	api := server.NewWebAPI(logger, server.Config{
		Addr: net.JoinHostPort(host, port),
		Dependencies: server.Dependencies{
			Ledgers:     ledgersvc.NewService(db, ledgers, states),
			Consumption: estimator,
			Status:      status.NewService(states, estimator),
			Settings:    settings,
		},
	})

	if err := api.Start(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
