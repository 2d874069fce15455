package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type rebuildCmd struct {
	opts  *options
	flags ledgerFlags
}

func newRebuildCmd(opts *options) *cobra.Command {
	rc := &rebuildCmd{opts: opts}
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild one ledger from its declared transactions",
		RunE:  rc.run,
	}
	rc.flags.register(cmd)
	return cmd
}

func (rc *rebuildCmd) run(cmd *cobra.Command, _ []string) error {
	d, err := buildDeps(rc.opts)
	if err != nil {
		return err
	}
	defer d.Close()

	state, err := d.ledgers.Rebuild(cmd.Context(), rc.flags.key())
	if err != nil {
		return fmt.Errorf("failed to rebuild ledger: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s, balance %s\n", state.Key, state.Balance)
	return nil
}
