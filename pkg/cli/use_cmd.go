package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <username> <command>",
		Short: "Record that a granted command was used",
		Long: `Records a usage event in the audit trail and stamps the grant's
last-used time. Intended to be called from a sudo wrapper or shell hook.
Usage without an active grant is still recorded, flagged as such.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, command := args[0], args[1]

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.RecordUsage(cmd.Context(), username, command); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"recorded": true,
					"username": username,
					"command":  command,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded use of %s by %s\n", command, username)
			return nil
		},
	}
}
