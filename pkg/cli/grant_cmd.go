package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"permctl/internal/domain"
)

func newGrantCmd() *cobra.Command {
	var durationMins int64

	cmd := &cobra.Command{
		Use:   "grant <username> <command>",
		Short: "Grant a user temporary sudo access to a whitelisted command",
		Example: `  # Grant alice docker access for the default 60 minutes
  permctl grant alice /usr/bin/docker

  # Grant for four hours
  permctl grant alice /usr/bin/docker --duration 240`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, command := args[0], args[1]

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			grant, err := a.manager.Grant(
				cmd.Context(),
				username,
				command,
				time.Duration(durationMins)*time.Minute,
				currentActor(),
			)

			var syncErr *domain.SyncError
			if errors.As(err, &syncErr) && syncErr.LedgerMutated {
				// The grant is durable but sudoers was not updated; a
				// later sync or mutation will converge the file.
				printGrantResult(cmd, grant, "granted, sudoers update pending")
				return err
			}
			if err != nil {
				return err
			}

			printGrantResult(cmd, grant, "granted")
			return nil
		},
	}

	cmd.Flags().Int64VarP(&durationMins, "duration", "t", 60, "Grant duration in minutes")
	return cmd
}

func printGrantResult(cmd *cobra.Command, grant *domain.PermissionGrant, status string) {
	if grant == nil {
		return
	}
	if getOutputFormat(cmd) == "json" {
		_ = PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
			"status": status,
			"grant":  toGrantRows([]domain.PermissionGrant{*grant})[0],
		})
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Permission %s\n", status)
	fmt.Fprintf(out, "  ID:      %s\n", grant.ID)
	fmt.Fprintf(out, "  User:    %s\n", grant.Username)
	fmt.Fprintf(out, "  Command: %s\n", grant.Command)
	fmt.Fprintf(out, "  Expires: %s\n", fmtTime(grant.ExpiresAt))
}
