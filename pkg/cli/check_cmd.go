package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errNotActive signals the exit code for a negative check without
// printing an error message.
var errNotActive = errors.New("not active")

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <username> <command>",
		Short: "Check whether a user holds an active grant (exit 0 if active, 1 if not)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, command := args[0], args[1]

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			active, err := a.manager.CheckActive(cmd.Context(), username, command)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				if err := PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"username": username,
					"command":  command,
					"active":   active,
				}); err != nil {
					return err
				}
			} else if active {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has active access to %s\n", username, command)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no active access to %s\n", username, command)
			}

			if !active {
				return errNotActive
			}
			return nil
		},
	}
}
