package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newActivityCmd(o *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the current organization's activity trail",
		Long: `Show the newest activity of the current organization: organizations
created, documents created, invitations sent and accepted. Requires the
admin role.

Examples:
  esignctl activity
  esignctl activity --limit 100 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}
			if err := rt.requireTenant(); err != nil {
				return err
			}
			entries, err := rt.client.ListActivity(cmd.Context(), limit)
			if err != nil {
				return fail("Failed to load activity", err)
			}

			return rt.out.print(entries, func(w io.Writer) error {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No activity")
					return nil
				}
				rows := make([][]any, 0, len(entries))
				for _, e := range entries {
					details := "-"
					if len(e.Details) > 0 {
						details = string(e.Details)
					}
					rows = append(rows, []any{formatTime(e.Timestamp), e.Action, e.ResourceType, details})
				}
				return table(w, "TIME\tACTION\tRESOURCE\tDETAILS", rows)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries (server default when 0)")
	return cmd
}
