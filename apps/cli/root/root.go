package root

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/schoolspace/platform/go/logging"
)

var logLevel string

// rootCmd carries the flags shared by every subcommand. Settings not exposed as
// flags come from the same environment the API server reads.
var rootCmd = &cobra.Command{
	Use:   "schoolspace",
	Short: "Operate a SchoolSpace deployment",
	Long: `Bootstraps the shared and per-school schemas, manages the school directory
and mints development session tokens.

Directory mutations publish cache invalidations on REDIS_URL when it is set, so
running API instances stop serving the old routing immediately.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("log-level") {
			return nil
		}
		if _, err := logging.ParseLevel(logLevel); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		return os.Setenv("LOG_LEVEL", logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

// ExecuteContext runs the CLI; commands observe ctx cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Root returns the root command for wiring subcommands.
func Root() *cobra.Command {
	return rootCmd
}
