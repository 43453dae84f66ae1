package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/upb/esign-platform/internal/session"
)

func newDocumentsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List and create documents in the current organization",
		Long: `List and create documents in the current organization. Select the
organization first with "esignctl orgs use".

Examples:
  esignctl documents list
  esignctl documents create "Master services agreement"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newDocumentsListCmd(o), newDocumentsCreateCmd(o))
	return cmd
}

func newDocumentsListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireTenant(); err != nil {
				return err
			}
			docs, err := rt.client.ListDocuments(cmd.Context())
			if err != nil {
				return fail("Failed to list documents", err)
			}

			return rt.out.print(docs, func(w io.Writer) error {
				if len(docs) == 0 {
					fmt.Fprintln(w, "No documents")
					return nil
				}
				rows := make([][]any, 0, len(docs))
				for _, d := range docs {
					rows = append(rows, []any{d.ID, d.Title, d.Status, formatTime(d.CreatedAt)})
				}
				return table(w, "ID\tTITLE\tSTATUS\tCREATED", rows)
			})
		},
	}
}

func newDocumentsCreateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <title>",
		Short: "Create a draft document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireTenant(); err != nil {
				return err
			}
			doc, err := rt.client.CreateDocument(cmd.Context(), args[0])
			if err != nil {
				return fail("Failed to create document", err)
			}
			return rt.out.print(doc, func(w io.Writer) error {
				fmt.Fprintf(w, "Created document %q (%s)\n", doc.Title, doc.ID)
				return nil
			})
		},
	}
}

func newInviteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "invite <document-id> <email>",
		Short: "Invite a signer to a document",
		Long: `Invite a signer to a document of the current organization. The signer
receives an email with an invitation link.

Examples:
  esignctl invite 6f1c2a9e-... bob@example.com`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireTenant(); err != nil {
				return err
			}
			inv, err := rt.client.InviteSigner(cmd.Context(), args[0], args[1])
			if err != nil {
				return fail("Failed to send invitation", err)
			}
			return rt.out.print(inv, func(w io.Writer) error {
				fmt.Fprintf(w, "Invited %s (expires %s)\n", inv.Email, formatTime(inv.ExpiresAt))
				return nil
			})
		},
	}
}

// requireTenant fails early when no session or no current organization is
// stored.
func (rt *runtime) requireTenant() error {
	if err := rt.requireSession(); err != nil {
		return err
	}
	if _, err := rt.session.CurrentOrganization(); err != nil {
		if errors.Is(err, session.ErrNoOrganization) {
			return fmt.Errorf("no current organization (run esignctl orgs use)")
		}
		return err
	}
	return nil
}
