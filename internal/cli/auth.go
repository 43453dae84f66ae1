package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/esign-platform/internal/apiclient"
)

func newLoginCmd(o *options) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with email and password and store the session token.

The password can also be supplied through ESIGN_PASSWORD.

Examples:
  esignctl login --email ana@example.com --password s3cret
  ESIGN_PASSWORD=s3cret esignctl login --email ana@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(EnvPassword)
			}
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				return fmt.Errorf("--password is required")
			}

			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			result, err := rt.client.Login(cmd.Context(), email, password)
			if err != nil {
				return fail("Login failed", err)
			}
			return rt.out.print(result, authText(result))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (env "+EnvPassword+")")
	return cmd
}

func newRegisterCmd(o *options) *cobra.Command {
	var name, email, password, organization string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create an account and sign in. When --organization is given the new
account owns that organization and it becomes the current one.

Examples:
  esignctl register --name "Ana Diaz" --email ana@example.com --password s3cret --organization Acme`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(EnvPassword)
			}
			if name == "" || email == "" || password == "" {
				return fmt.Errorf("--name, --email and --password are required")
			}

			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			result, err := rt.client.Register(cmd.Context(), name, email, password, organization)
			if err != nil {
				return fail("Registration failed", err)
			}
			return rt.out.print(result, authText(result))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (env "+EnvPassword+")")
	cmd.Flags().StringVar(&organization, "organization", "", "name of the first organization")
	return cmd
}

func newGoogleCmd(o *options) *cobra.Command {
	var creds apiclient.GoogleCredentials

	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google credential",
		Long: `Sign in with a credential obtained from Google sign-in. Exactly one of
--id-token, --code or --access-token is needed; when several are given the
server prefers the id token, then the code.

Examples:
  esignctl google --id-token eyJhbGciOi...
  esignctl google --code 4/0AX4XfW...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			result, err := rt.client.LoginWithGoogle(cmd.Context(), creds)
			if err != nil {
				return fail("Google sign-in failed", err)
			}
			return rt.out.print(result, authText(result))
		},
	}

	cmd.Flags().StringVar(&creds.IDToken, "id-token", "", "Google ID token")
	cmd.Flags().StringVar(&creds.AccessToken, "access-token", "", "Google access token")
	cmd.Flags().StringVar(&creds.Code, "code", "", "Google authorization code")
	return cmd
}

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if !rt.session.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err := rt.client.Logout(cmd.Context()); err != nil {
				// Local state is already cleared.
				rt.logger.Debug("server logout failed", zap.Error(err))
				fmt.Fprintln(cmd.ErrOrStderr(), apiclient.FormatError("Warning: server logout failed", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newMeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user and their organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireSession(); err != nil {
				return err
			}
			profile, err := rt.client.Me(cmd.Context())
			if err != nil {
				return fail("Failed to load profile", err)
			}

			current, _ := rt.session.CurrentOrganization()
			return rt.out.print(profile, func(w io.Writer) error {
				fmt.Fprintf(w, "%s <%s>\n", displayName(profile.User), profile.User.Email)
				if len(profile.Organizations) == 0 {
					fmt.Fprintln(w, "No organizations")
					return nil
				}
				return organizationTable(w, profile.Organizations, current.ID)
			})
		},
	}
}

func authText(result *apiclient.AuthResult) func(io.Writer) error {
	return func(w io.Writer) error {
		fmt.Fprintf(w, "Signed in as %s\n", displayName(result.User))
		if org := result.Organization; org != nil && org.ID != "" {
			fmt.Fprintf(w, "Current organization: %s (%s)\n", org.Name, org.ID)
		}
		return nil
	}
}

func displayName(u apiclient.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
