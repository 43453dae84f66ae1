package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/upb/esign-platform/internal/apiclient"
	"github.com/upb/esign-platform/internal/session"
)

func newOrgsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations"},
		Short:   "List, create and switch organizations",
		Long: `Manage the organizations you belong to. Document commands act on the
current organization, which is sent as the tenant of every request.

Examples:
  esignctl orgs list
  esignctl orgs create --name "Acme Legal" --slug acme-legal
  esignctl orgs use acme-legal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newOrgsListCmd(o), newOrgsCreateCmd(o), newOrgsUseCmd(o))
	return cmd
}

func newOrgsListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireSession(); err != nil {
				return err
			}
			orgs, err := rt.client.ListOrganizations(cmd.Context())
			if err != nil {
				return fail("Failed to list organizations", err)
			}

			current, _ := rt.session.CurrentOrganization()
			return rt.out.print(orgs, func(w io.Writer) error {
				if len(orgs) == 0 {
					fmt.Fprintln(w, "No organizations")
					return nil
				}
				return organizationTable(w, orgs, current.ID)
			})
		},
	}
}

func newOrgsCreateCmd(o *options) *cobra.Command {
	var name, slug string
	var use bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organization",
		Long: `Create an organization owned by you. The slug is derived from the name
when omitted.

Examples:
  esignctl orgs create --name "Acme Legal"
  esignctl orgs create --name "Acme Legal" --slug acme --use`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireSession(); err != nil {
				return err
			}
			org, err := rt.client.CreateOrganization(cmd.Context(), name, slug)
			if err != nil {
				return fail("Failed to create organization", err)
			}
			if use {
				if err := rt.session.SetCurrentOrganization(toSessionOrg(*org)); err != nil {
					return err
				}
			}
			return rt.out.print(org, func(w io.Writer) error {
				fmt.Fprintf(w, "Created organization %s (%s)\n", org.Name, org.ID)
				if use {
					fmt.Fprintln(w, "Now using it as the current organization")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "organization name")
	cmd.Flags().StringVar(&slug, "slug", "", "URL slug (optional)")
	cmd.Flags().BoolVar(&use, "use", false, "make the new organization current")
	return cmd
}

func newOrgsUseCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id-or-slug>",
		Short: "Set the current organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireSession(); err != nil {
				return err
			}
			orgs, err := rt.client.ListOrganizations(cmd.Context())
			if err != nil {
				return fail("Failed to list organizations", err)
			}

			org, ok := findOrganization(orgs, args[0])
			if !ok {
				return fmt.Errorf("you are not a member of organization %q", args[0])
			}
			if err := rt.session.SetCurrentOrganization(toSessionOrg(org)); err != nil {
				return err
			}
			return rt.out.print(org, func(w io.Writer) error {
				fmt.Fprintf(w, "Using organization %s (%s)\n", org.Name, org.ID)
				return nil
			})
		},
	}
}

func findOrganization(orgs []apiclient.Organization, key string) (apiclient.Organization, bool) {
	for _, org := range orgs {
		if org.ID == key || (org.Slug != "" && org.Slug == key) {
			return org, true
		}
	}
	return apiclient.Organization{}, false
}

func toSessionOrg(org apiclient.Organization) session.Organization {
	return session.Organization{ID: org.ID, Name: org.Name, Slug: org.Slug}
}

func organizationTable(w io.Writer, orgs []apiclient.Organization, currentID string) error {
	rows := make([][]any, 0, len(orgs))
	for _, org := range orgs {
		marker := ""
		if org.ID == currentID {
			marker = "*"
		}
		rows = append(rows, []any{marker, org.ID, org.Name, org.Slug, org.Role})
	}
	return table(w, "\tID\tNAME\tSLUG\tROLE", rows)
}
