package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devmarvs/schoolgate"
	"github.com/devmarvs/schoolgate/auth"
)

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withConsole(cmd.Context(), func(console *schoolgate.Console) error {
				console.Logout(cmd.Context())
				if a.output == "json" {
					return printJSON(a.streams.Out, map[string]bool{"logged_out": true})
				}
				fmt.Fprintln(a.streams.Out, "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withConsole(cmd.Context(), func(console *schoolgate.Console) error {
				principal := console.Session().Principal()
				if remote {
					var err error
					if principal, err = console.Profile(cmd.Context()); err != nil {
						return err
					}
				}
				return printPrincipal(a, principal)
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the profile from the server")
	return cmd
}

func printPrincipal(a *app, principal *auth.Principal) error {
	if a.output == "json" {
		return printJSON(a.streams.Out, map[string]any{"authenticated": principal != nil, "user": principal})
	}
	if principal == nil {
		fmt.Fprintln(a.streams.Out, "Not logged in")
		return nil
	}
	w := tabwriter.NewWriter(a.streams.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%d\n", principal.ID)
	fmt.Fprintf(w, "NAME\t%s\n", principal.DisplayName())
	fmt.Fprintf(w, "EMAIL\t%s\n", principal.Email)
	fmt.Fprintf(w, "ROLE\t%s\n", principal.Role)
	return w.Flush()
}
