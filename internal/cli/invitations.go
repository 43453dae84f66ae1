package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/upb/esign-platform/internal/guard"
)

// invitationRef is the email and token pair of an invitation link.
type invitationRef struct {
	email string
	token string
}

func (ref *invitationRef) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ref.email, "email", "", "invited email")
	cmd.Flags().StringVar(&ref.token, "token", "", "invitation token")
}

// resolve fills the pair from an invitation link when one is given. Flags
// take precedence over the link.
func (ref *invitationRef) resolve(args []string) error {
	if len(args) == 1 {
		target, err := guard.DefaultRoutes().Resolve(args[0])
		if err != nil {
			return err
		}
		if ref.email == "" {
			ref.email = target.Query.Get(guard.QueryEmail)
		}
		if ref.token == "" {
			ref.token = target.Query.Get(guard.QueryToken)
		}
	}
	if ref.email == "" || ref.token == "" {
		return fmt.Errorf("an invitation link or both --email and --token are required")
	}
	return nil
}

func newInvitationCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invitation",
		Aliases: []string{"inv"},
		Short:   "Inspect and accept invitations",
		Long: `Inspect and accept invitations. Pass the link from the invitation email
or its email and token.

Examples:
  esignctl invitation show "https://app.example.com/invite?email=bob%40example.com&token=..."
  esignctl invitation accept --email bob@example.com --token ...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newInvitationShowCmd(o), newInvitationAcceptCmd(o))
	return cmd
}

func newInvitationShowCmd(o *options) *cobra.Command {
	var ref invitationRef

	cmd := &cobra.Command{
		Use:   "show [link]",
		Short: "Show an invitation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ref.resolve(args); err != nil {
				return err
			}
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			inv, err := rt.client.LookupInvitation(cmd.Context(), ref.email, ref.token)
			if err != nil {
				return fail("Invitation not available", err)
			}
			return rt.out.print(inv, func(w io.Writer) error {
				fmt.Fprintf(w, "Invitation for %s\n", inv.Email)
				if inv.OrganizationName != "" {
					fmt.Fprintf(w, "Organization: %s\n", inv.OrganizationName)
				}
				if inv.DocumentTitle != "" {
					fmt.Fprintf(w, "Document: %s\n", inv.DocumentTitle)
				}
				fmt.Fprintf(w, "Status: %s\n", inv.Status)
				fmt.Fprintf(w, "Expires: %s\n", formatTime(inv.ExpiresAt))
				return nil
			})
		},
	}

	ref.bind(cmd)
	return cmd
}

func newInvitationAcceptCmd(o *options) *cobra.Command {
	var ref invitationRef

	cmd := &cobra.Command{
		Use:   "accept [link]",
		Short: "Accept an invitation and switch to its organization",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ref.resolve(args); err != nil {
				return err
			}
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireSession(); err != nil {
				return err
			}
			org, err := rt.client.AcceptInvitation(cmd.Context(), ref.email, ref.token)
			if err != nil {
				return fail("Failed to accept invitation", err)
			}
			return rt.out.print(org, func(w io.Writer) error {
				fmt.Fprintf(w, "Joined %s (%s)\n", org.Name, org.ID)
				return nil
			})
		},
	}

	ref.bind(cmd)
	return cmd
}
