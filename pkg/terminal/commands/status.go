package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusCmd struct {
	opts  *options
	flags ledgerFlags
}

func newStatusCmd(opts *options) *cobra.Command {
	sc := &statusCmd{opts: opts}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the resupply status for one ledger",
		RunE:  sc.run,
	}
	sc.flags.register(cmd)
	return cmd
}

func (sc *statusCmd) run(cmd *cobra.Command, _ []string) error {
	d, err := buildDeps(sc.opts)
	if err != nil {
		return err
	}
	defer d.Close()

	asOf, err := sc.flags.asOfTime()
	if err != nil {
		return fmt.Errorf("invalid --as-of: %w", err)
	}

	ctx := cmd.Context()
	cfg := d.settings.ConsumptionConfig(ctx, sc.flags.entityType)
	thresholds := d.settings.Thresholds(ctx, sc.flags.entityType)

	result, err := d.status.GetStatus(ctx, sc.flags.key(), asOf, cfg, thresholds)
	if err != nil {
		return fmt.Errorf("failed to compute status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ledger:    %s\n", result.Key)
	fmt.Fprintf(out, "category:  %s\n", result.Category)
	fmt.Fprintf(out, "balance:   %s\n", result.Balance)
	if result.StockedOutSince != nil {
		fmt.Fprintf(out, "stocked out since: %s\n", result.StockedOutSince.Format("2006-01-02"))
	}
	if result.DailyRate != nil {
		fmt.Fprintf(out, "daily consumption: %s units/day\n", result.DailyRate)
	}
	if result.MonthsRemaining != nil {
		fmt.Fprintf(out, "months remaining:  %s\n", result.MonthsRemaining.StringFixed(1))
	}
	return nil
}
