package cli

import (
	"github.com/spf13/cobra"

	"permctl/internal/domain"
)

type auditRow struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Username  string  `json:"username"`
	Command   string  `json:"command"`
	Action    string  `json:"action"`
	Details   *string `json:"details,omitempty"`
}

func newAuditCmd() *cobra.Command {
	var (
		username string
		action   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail, newest first",
		Example: `  # Last 100 events
  permctl audit

  # Everything alice did
  permctl audit --user alice

  # Recent revocations as JSON
  permctl audit --action revoke --limit 20 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			filter := domain.AuditFilter{Limit: limit}
			if username != "" {
				filter.Username = &username
			}
			if action != "" {
				filter.Action = &action
			}

			entries, err := a.manager.AuditTrail(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				rows := make([]auditRow, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, auditRow{
						ID:        e.ID,
						Timestamp: fmtTime(e.Timestamp),
						Username:  e.Username,
						Command:   e.Command,
						Action:    e.Action,
						Details:   e.Details,
					})
				}
				return PrintJSON(cmd.OutOrStdout(), rows)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					fmtTime(e.Timestamp),
					e.Username,
					e.Command,
					e.Action,
					fmtStrPtr(e.Details),
				})
			}
			PrintTable(cmd.OutOrStdout(), []string{"timestamp", "user", "command", "action", "details"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Filter by user")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action (grant, revoke, use)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum entries to show")
	return cmd
}
