package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/de-tools/stock-atlas/pkg/services/config"
	"github.com/de-tools/stock-atlas/pkg/services/consumption"
	ledgersvc "github.com/de-tools/stock-atlas/pkg/services/ledger"
	"github.com/de-tools/stock-atlas/pkg/services/status"
	"github.com/de-tools/stock-atlas/pkg/store/duckdb"
	ledgerstore "github.com/de-tools/stock-atlas/pkg/store/duckdb/ledger"
	statestore "github.com/de-tools/stock-atlas/pkg/store/duckdb/state"
)

type options struct {
	dbPath       string
	settingsPath string
}

// deps is the per-invocation service graph, built once a command runs.
type deps struct {
	db          *sql.DB
	ledgers     *ledgersvc.Service
	consumption *consumption.Estimator
	status      *status.Service
	settings    config.Registry
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "stock-atlas",
		Short: "Track stock ledgers and estimate consumption",
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "stock-atlas.db", "Path to the DuckDB database")
	root.PersistentFlags().StringVar(&opts.settingsPath, "settings", "",
		"Path to the settings profile (defaults apply when omitted)")

	root.AddCommand(
		newApplyCmd(opts),
		newEstimateCmd(opts),
		newStatusCmd(opts),
		newRebuildCmd(opts),
	)
	return root
}

func buildDeps(opts *options) (*deps, error) {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: opts.dbPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ledgers, err := ledgerstore.NewStore(db)
	if err != nil {
		return nil, err
	}
	states, err := statestore.NewStore(db)
	if err != nil {
		return nil, err
	}

	settings := config.DefaultRegistry()
	if opts.settingsPath != "" {
		settings, err = config.LoadRegistry(opts.settingsPath)
		if err != nil {
			return nil, err
		}
	}

	estimator := consumption.NewEstimator(ledgers)
	return &deps{
		db:          db,
		ledgers:     ledgersvc.NewService(db, ledgers, states),
		consumption: estimator,
		status:      status.NewService(states, estimator),
		settings:    settings,
	}, nil
}

func (d *deps) Close() {
	_ = d.db.Close()
}
