package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Force a sudoers rewrite from the current ledger state",
		Long: `Rebuilds the managed sudoers file from the set of active grants.
Useful after a reported partial failure, or to repair a hand-edited or
deleted file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.Synchronize(cmd.Context()); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"synchronized": true,
					"path":         a.cfg.SudoersPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synchronized %s\n", a.cfg.SudoersPath)
			return nil
		},
	}
}
