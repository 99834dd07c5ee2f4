package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username> <command>",
		Short: "Revoke a user's active grant for a command",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, command := args[0], args[1]

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			revoked, err := a.manager.Revoke(cmd.Context(), username, command, currentActor())
			if err != nil {
				// A failed sudoers rewrite after a revoke leaves the
				// access still enforced on disk; never report success.
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"revoked":  revoked,
					"username": username,
					"command":  command,
				})
			}
			if revoked {
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s for %s\n", command, username)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No active grant of %s for %s\n", command, username)
			}
			return nil
		},
	}
}
