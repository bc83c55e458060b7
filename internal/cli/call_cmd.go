package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/devmarvs/schoolgate"
	"github.com/devmarvs/schoolgate/httpclient"
)

func newCallCmd(a *app) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "call <operation> [params...]",
		Short: "Call a catalog operation",
		Long:  "Call an operation from the endpoint catalog. Reads are deduplicated and retried; writes run once.",
		Example: `  schoolgate call students.classroom 7
  schoolgate call grades.add --data '{"student_id":10,"subject_id":2,"score":15}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operation := args[0]
			params := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				params = append(params, arg)
			}

			var body any
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				body = json.RawMessage(data)
			}

			return a.withConsole(cmd.Context(), func(console *schoolgate.Console) error {
				template, ok := console.Registry().Lookup(operation)
				if !ok {
					return fmt.Errorf("unknown operation %q; see `schoolgate endpoints`", operation)
				}

				var result *httpclient.Result
				var err error
				if method := template.Info().Method; (method == http.MethodGet || method == http.MethodHead) && body == nil {
					result, err = console.Read(cmd.Context(), operation, params...)
				} else {
					result, err = console.Write(cmd.Context(), operation, body, params...)
				}
				if err != nil {
					return err
				}
				return printResult(a, result)
			})
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	return cmd
}

func printResult(a *app, result *httpclient.Result) error {
	if text, ok := result.Data.(string); ok {
		_, err := fmt.Fprint(a.streams.Out, text)
		return err
	}
	if result.Data == nil {
		fmt.Fprintf(a.streams.Out, "%d %s\n", result.Status, http.StatusText(result.Status))
		return nil
	}
	return printJSON(a.streams.Out, result.Data)
}
