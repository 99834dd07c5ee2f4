package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"permctl/internal/domain"
)

func newListCmd() *cobra.Command {
	var (
		username string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List grants",
		Example: `  # All currently active grants
  permctl list

  # Active grants for one user
  permctl list --user alice

  # Full grant history for one user, superseded and revoked included
  permctl list --user alice --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all && username == "" {
				return fmt.Errorf("--all requires --user")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var grants []domain.PermissionGrant
			switch {
			case all:
				grants, err = a.manager.ListForUser(cmd.Context(), username)
			case username != "":
				grants, err = a.manager.ListActiveForUser(cmd.Context(), username)
			default:
				grants, err = a.manager.ListAllActive(cmd.Context())
			}
			if err != nil {
				return err
			}

			if all {
				return printGrantHistory(cmd, grants)
			}
			return printGrants(cmd, grants)
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Limit to one user")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include expired, superseded, and revoked grants (requires --user)")
	return cmd
}

func printGrantHistory(cmd *cobra.Command, grants []domain.PermissionGrant) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), toGrantRows(grants))
	}
	rows := make([][]string, 0, len(grants))
	for _, g := range grants {
		status := "active"
		switch {
		case g.Revoked:
			status = "revoked by " + fmtStrPtr(g.RevokedBy)
		case !g.Active(time.Now()):
			status = "expired"
		}
		rows = append(rows, []string{
			g.Command,
			fmtTime(g.GrantedAt),
			fmtTime(g.ExpiresAt),
			fmtTimePtr(g.LastUsed),
			status,
		})
	}
	PrintTable(cmd.OutOrStdout(), []string{"command", "granted", "expires", "last used", "status"}, rows)
	return nil
}
