package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/schoolspace/apps/cli/cmd/clienv"
	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// Command groups schema bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the shared directory schema or a school schema",
	}

	cmd.AddCommand(sharedCommand(), schoolCommand())
	return cmd
}

func sharedCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "shared",
		Short: "Create the shared schema with the schools directory and memberships tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			e, err := clienv.Load(databaseURL)
			if err != nil {
				return err
			}
			deps, err := clienv.Open(ctx, e)
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := persistence.BootstrapShared(ctx, deps.Pool, e.SharedSchema); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Shared schema %q ready.\n", e.SharedSchema)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	return c
}

// schoolCommand re-applies the per-school DDL. It is idempotent and repairs a
// school left in provisioning by a failed create.
func schoolCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "school <namespace>",
		Short: "Create or repair the tables of one school schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			namespace := args[0]
			if err := tenant.ValidateNamespace(namespace); err != nil {
				return err
			}

			e, err := clienv.Load(databaseURL)
			if err != nil {
				return err
			}
			deps, err := clienv.Open(ctx, e)
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := persistence.BootstrapSchool(ctx, deps.Pool, namespace); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "School schema %q ready.\n", namespace)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	return c
}
