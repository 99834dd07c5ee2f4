package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errNotActive) {
			// check already printed its result; only the exit code matters.
			return 1
		}
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = PrintJSON(os.Stdout, map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		output     string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "permctl",
		Short:         "Temporary sudo privilege manager",
		Long:          "permctl grants users time-bounded sudo access to whitelisted commands,\nrecording every grant, revocation, and use in an append-only ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default "+defaultConfigHint())
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", defaultOutputFormat(), "Output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(newGrantCmd())
	rootCmd.AddCommand(newRevokeCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newUseCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func defaultConfigHint() string {
	return "/etc/permctl/config.yaml, override with PERMCTL_CONFIG)"
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
