package school

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/schoolspace/apps/cli/cmd/clienv"
	"github.com/zenGate-Global/schoolspace/domains/schools/be/provisioning"
	"github.com/zenGate-Global/schoolspace/domains/schools/be/repo"
	"github.com/zenGate-Global/schoolspace/domains/schools/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/requesttrace"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// Command groups school directory administration. Every mutation publishes an
// invalidation so running API instances drop their cached resolutions.
func Command() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "school",
		Short: "Register schools and change their status or routing keys",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")

	open := func(cmd *cobra.Command) (context.Context, *clienv.Deps, *service.Service, error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = requesttrace.IntoContext(ctx, requesttrace.System(""))

		e, err := clienv.Load(databaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		deps, err := clienv.Open(ctx, e)
		if err != nil {
			return nil, nil, nil, err
		}
		svc := service.New(service.Config{
			Repo:               repo.NewPostgresRepository(deps.Directory),
			Provisioner:        provisioning.NewSchemaProvisioner(deps.Pool),
			Invalidator:        deps.Cache,
			ReservedSubdomains: e.Reserved,
			Logger:             deps.Logger,
		})
		return ctx, deps, svc, nil
	}

	cmd.AddCommand(
		listCommand(open),
		createCommand(open),
		statusCommand(open),
		routingCommand(open),
		grantCommand(open),
	)
	return cmd
}

type opener func(cmd *cobra.Command) (context.Context, *clienv.Deps, *service.Service, error)

func listCommand(open opener) *cobra.Command {
	var status string

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered schools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, deps, svc, err := open(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			opts := service.ListOptions{Page: 1, PageSize: 100}
			if status != "" {
				st, err := tenant.ParseStatus(status)
				if err != nil {
					return err
				}
				opts.Status = &st
			}

			for {
				res, err := svc.List(ctx, opts)
				if err != nil {
					return err
				}
				for _, s := range res.Schools {
					printSchool(cmd.OutOrStdout(), s)
				}
				if opts.Page >= res.TotalPages {
					return nil
				}
				opts.Page++
			}
		},
	}

	c.Flags().StringVar(&status, "status", "", "only list schools with this status")
	return c
}

func createCommand(open opener) *cobra.Command {
	var input service.CreateInput
	var status string

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a school and create its schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, deps, svc, err := open(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			if status != "" {
				st, err := tenant.ParseStatus(status)
				if err != nil {
					return err
				}
				input.Status = st
			}

			school, err := svc.Create(ctx, input)
			if err != nil {
				return err
			}
			printSchool(cmd.OutOrStdout(), school)
			return nil
		},
	}

	c.Flags().StringVar(&input.Name, "name", "", "display name")
	c.Flags().StringVar(&input.Code, "code", "", "school code (lower-case, hyphens allowed)")
	c.Flags().StringVar(&input.Subdomain, "subdomain", "", "routing subdomain (defaults to the code)")
	c.Flags().StringVar(&status, "status", "", "initial status once provisioned (default active)")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("code")
	return c
}

func statusCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status <school-id> <active|inactive|archived>",
		Short: "Change a school's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := tenant.ParseStatus(args[1])
			if err != nil {
				return err
			}

			ctx, deps, svc, err := open(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			school, err := svc.SetStatus(ctx, id, st)
			if err != nil {
				return err
			}
			printSchool(cmd.OutOrStdout(), school)
			return nil
		},
	}
}

func routingCommand(open opener) *cobra.Command {
	var subdomain, code string

	c := &cobra.Command{
		Use:   "routing <school-id>",
		Short: "Change a school's subdomain or code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var input service.RoutingInput
			if cmd.Flags().Changed("subdomain") {
				input.Subdomain = &subdomain
			}
			if cmd.Flags().Changed("code") {
				input.Code = &code
			}
			if input.Subdomain == nil && input.Code == nil {
				return fmt.Errorf("nothing to change: pass --subdomain and/or --code")
			}

			ctx, deps, svc, err := open(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			school, err := svc.UpdateRouting(ctx, id, input)
			if err != nil {
				return err
			}
			printSchool(cmd.OutOrStdout(), school)
			return nil
		},
	}

	c.Flags().StringVar(&subdomain, "subdomain", "", "new subdomain")
	c.Flags().StringVar(&code, "code", "", "new code")
	return c
}

func grantCommand(open opener) *cobra.Command {
	var userID, role string

	c := &cobra.Command{
		Use:   "grant <school-id>",
		Short: "Grant a user membership of a school",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, deps, svc, err := open(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			if _, err := svc.Get(ctx, id); err != nil {
				return err
			}
			m, err := persistence.NewMembershipStore(deps.Exec).Grant(ctx, strings.TrimSpace(userID), id, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted %s role %q in school %d.\n", m.UserID, m.Role, m.SchoolID)
			return nil
		},
	}

	c.Flags().StringVar(&userID, "user-id", "", "principal id from the session token")
	c.Flags().StringVar(&role, "role", "member", "membership role")
	_ = c.MarkFlagRequired("user-id")
	return c
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid school id %q", raw)
	}
	return id, nil
}

func printSchool(w io.Writer, s service.School) {
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Code, s.Subdomain, s.Namespace, s.Status, s.Name)
}
