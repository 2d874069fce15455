package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/de-tools/stock-atlas/pkg/adapters"
	"github.com/de-tools/stock-atlas/pkg/models/api"
)

type applyCmd struct {
	opts     *options
	entityID string
	filePath string
}

func newApplyCmd(opts *options) *cobra.Command {
	ac := &applyCmd{opts: opts}
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a stock report from a JSON file",
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.entityID, "entity", "", "Entity the report belongs to")
	cmd.Flags().StringVar(&ac.filePath, "file", "", "Path to the report JSON file")

	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (ac *applyCmd) run(cmd *cobra.Command, _ []string) error {
	d, err := buildDeps(ac.opts)
	if err != nil {
		return err
	}
	defer d.Close()

	raw, err := os.ReadFile(ac.filePath)
	if err != nil {
		return fmt.Errorf("failed to read report file: %w", err)
	}
	var payload api.Report
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse report file: %w", err)
	}

	report, err := adapters.MapApiReportToDomain(ac.entityID, payload)
	if err != nil {
		return err
	}
	report.ReceivedAt = time.Now().UTC()

	result, err := d.ledgers.ApplyReport(cmd.Context(), report)
	if err != nil {
		return fmt.Errorf("failed to apply report: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "applied %d transaction(s), skipped %d entr(ies)\n",
		len(result.Transactions), result.Skipped)
	for _, tx := range result.Transactions {
		marker := " "
		if tx.Inferred {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-14s %10s -> balance %s (%s/%s)\n",
			marker, tx.Action, tx.Quantity, tx.ResultingBalance, tx.Key.SectionID, tx.Key.ProductID)
	}
	return nil
}
