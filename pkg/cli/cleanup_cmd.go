package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Revoke expired grants and rewrite the sudoers file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.manager.Cleanup(cmd.Context())
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"swept": count,
				})
			}
			if count > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Swept %d expired grant(s)\n", count)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No expired grants")
			}
			return nil
		},
	}
}
