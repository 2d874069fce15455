package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/de-tools/stock-atlas/pkg/models/domain"
	ledgersvc "github.com/de-tools/stock-atlas/pkg/services/ledger"
)

type ledgerFlags struct {
	entityID   string
	sectionID  string
	productID  string
	entityType string
	asOf       string
}

func (lf *ledgerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.entityID, "entity", "", "Entity to inspect")
	cmd.Flags().StringVar(&lf.sectionID, "section", ledgersvc.DefaultSectionID, "Ledger section")
	cmd.Flags().StringVar(&lf.productID, "product", "", "Product to inspect")
	cmd.Flags().StringVar(&lf.entityType, "type", "", "Entity type for settings overrides")
	cmd.Flags().StringVar(&lf.asOf, "as-of", "", "Estimation instant (RFC 3339, defaults to now)")

	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("product")
}

func (lf *ledgerFlags) key() domain.LedgerKey {
	return domain.LedgerKey{EntityID: lf.entityID, SectionID: lf.sectionID, ProductID: lf.productID}
}

func (lf *ledgerFlags) asOfTime() (time.Time, error) {
	if lf.asOf == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, lf.asOf)
}

type estimateCmd struct {
	opts  *options
	flags ledgerFlags
}

func newEstimateCmd(opts *options) *cobra.Command {
	ec := &estimateCmd{opts: opts}
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the daily consumption rate for one ledger",
		RunE:  ec.run,
	}
	ec.flags.register(cmd)
	return cmd
}

func (ec *estimateCmd) run(cmd *cobra.Command, _ []string) error {
	d, err := buildDeps(ec.opts)
	if err != nil {
		return err
	}
	defer d.Close()

	asOf, err := ec.flags.asOfTime()
	if err != nil {
		return fmt.Errorf("invalid --as-of: %w", err)
	}

	cfg := d.settings.ConsumptionConfig(cmd.Context(), ec.flags.entityType)
	rate, err := d.consumption.DailyConsumption(cmd.Context(), ec.flags.key(), asOf, cfg)
	if err != nil {
		return fmt.Errorf("failed to estimate consumption: %w", err)
	}

	if rate == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no data: not enough history within the window")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "daily consumption: %s units/day\n", rate)
	return nil
}
