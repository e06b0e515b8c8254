package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/schoolspace/platform/go/auth/devtoken"
)

// Command groups authentication helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers for local development",
	}
	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var (
		params devtoken.Params
		signed bool
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate a session token for local use (unsigned, or HMAC with --signed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()

			var (
				token string
				err   error
			)
			if signed {
				secret := os.Getenv("AUTH_HMAC_SECRET")
				if secret == "" {
					return errors.New("AUTH_HMAC_SECRET must be set to sign tokens")
				}
				token, err = devtoken.BuildHMAC(params, now, []byte(secret))
			} else {
				token, err = devtoken.BuildUnsigned(params, now)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	// Required claims
	cmd.Flags().StringVar(&params.UserID, "user-id", "", "user_id/sub claim")
	cmd.Flags().StringVar(&params.Email, "email", "", "email claim")

	// Optional claims
	cmd.Flags().StringVar(&params.ProjectID, "project-id", "", "project ID used for iss/aud (default schoolspace-local)")
	cmd.Flags().StringVar(&params.Name, "name", "", "display name")
	cmd.Flags().BoolVar(&params.EmailVerified, "email-verified", true, "email_verified claim")
	cmd.Flags().BoolVar(&params.PlatformAdmin, "platform-admin", false, "set platform_admin=true")
	cmd.Flags().Int64Var(&params.SchoolID, "school-id", 0, "school_id claim (requires --school-namespace)")
	cmd.Flags().StringVar(&params.SchoolNamespace, "school-namespace", "", "school_schema claim (requires --school-id)")
	cmd.Flags().Int64Var(&params.PrimarySchoolID, "primary-school-id", 0, "primary_school_id claim")
	cmd.Flags().DurationVar(&params.ExpiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")
	cmd.Flags().StringVar(&params.Audience, "audience", "", "override aud; defaults to project-id")
	cmd.Flags().StringVar(&params.Issuer, "issuer", "", "override iss; defaults to securetoken URL")
	cmd.Flags().BoolVar(&signed, "signed", false, "sign with AUTH_HMAC_SECRET for AUTH_PROVIDER=hmac")

	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
