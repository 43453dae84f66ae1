package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/upb/esign-platform/internal/guard"
)

type routeResult struct {
	Path     string `json:"path"`
	Route    string `json:"route,omitempty"`
	Action   string `json:"action"`
	Redirect string `json:"redirect,omitempty"`
}

func newRouteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "route <url>",
		Short: "Show where the web app would send you for a URL",
		Long: `Evaluate the web app's navigation guard for a URL against the local
session. Useful to check where an invitation or OAuth link lands.

Examples:
  esignctl route /dashboard
  esignctl route "https://app.example.com/login?auth_code=abc"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.connect(cmd)
			if err != nil {
				return err
			}

			routes := guard.DefaultRoutes()
			target, err := routes.Resolve(args[0])
			if err != nil {
				return err
			}
			decision := guard.New().Evaluate(target, rt.session)

			result := routeResult{
				Path:   target.Path,
				Route:  target.Name,
				Action: decision.Action.String(),
			}
			if decision.Action == guard.Redirect {
				result.Redirect = routes.URL(decision.Route)
			}

			return rt.out.print(result, func(w io.Writer) error {
				if result.Redirect != "" {
					fmt.Fprintf(w, "redirect %s -> %s\n", result.Path, result.Redirect)
					return nil
				}
				fmt.Fprintf(w, "allow %s\n", result.Path)
				return nil
			})
		},
	}
}
