package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devmarvs/schoolgate"
	"github.com/devmarvs/schoolgate/endpoint"
)

type endpointRow struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Public bool   `json:"public"`
	Roles  string `json:"roles"`
}

func newEndpointsCmd(a *app) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the operations of the endpoint catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var registry *endpoint.Registry
			err := a.withConsole(cmd.Context(), func(console *schoolgate.Console) error {
				registry = console.Registry()
				return nil
			})
			if err != nil {
				return err
			}

			rows := make([]endpointRow, 0, registry.Len())
			for _, name := range registry.Names() {
				if prefix != "" && !strings.HasPrefix(name, prefix) {
					continue
				}
				template, _ := registry.Lookup(name)
				info := template.Info()
				rows = append(rows, endpointRow{
					Name:   name,
					Method: strings.ToUpper(info.Method),
					Path:   info.Path,
					Public: info.Public,
					Roles:  info.Roles.String(),
				})
			}

			if a.output == "json" {
				return printJSON(a.streams.Out, rows)
			}
			w := tabwriter.NewWriter(a.streams.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tMETHOD\tPATH\tAUTH\tROLES")
			for _, row := range rows {
				access := "token"
				if row.Public {
					access = "public"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.Name, row.Method, row.Path, access, row.Roles)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list operations with this name prefix")
	return cmd
}
