package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"permctl/internal/config"
)

// commandEntry is the JSON shape of one whitelisted command.
type commandEntry struct {
	Command            string   `json:"command"`
	Description        string   `json:"description,omitempty"`
	MaxDurationMinutes int64    `json:"max_duration_minutes"`
	RequiredGroups     []string `json:"required_groups,omitempty"`
	AuditUsage         bool     `json:"audit_usage"`
	MaxConcurrentUsers int      `json:"max_concurrent_users"`
}

func newCommandsCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Show the whitelisted commands and their policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Only the config is needed; skip opening the ledger.
			cfgFlag, _ := cmd.Root().PersistentFlags().GetString("config")
			cfg, err := config.Load(config.Path(cfgFlag))
			if err != nil {
				return err
			}

			policies := cfg.Policies()
			entries := make([]commandEntry, 0, len(policies))
			for _, name := range policies.Commands() {
				p, _ := policies.Lookup(name)
				entries = append(entries, commandEntry{
					Command:            name,
					Description:        p.Description,
					MaxDurationMinutes: int64(p.MaxDuration / time.Minute),
					RequiredGroups:     p.RequiredGroups,
					AuditUsage:         p.AuditUsage,
					MaxConcurrentUsers: p.MaxConcurrentUsers,
				})
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), entries)
			}

			if !verbose {
				for _, e := range entries {
					fmt.Fprintln(cmd.OutOrStdout(), e.Command)
				}
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				audit := "no"
				if e.AuditUsage {
					audit = "yes"
				}
				rows = append(rows, []string{
					e.Command,
					e.Description,
					strconv.FormatInt(e.MaxDurationMinutes, 10) + "m",
					strings.Join(e.RequiredGroups, ","),
					audit,
					strconv.Itoa(e.MaxConcurrentUsers),
				})
			}
			PrintTable(cmd.OutOrStdout(),
				[]string{"command", "description", "max duration", "groups", "audited", "max users"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show full policy details")
	return cmd
}
