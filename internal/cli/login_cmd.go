package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devmarvs/schoolgate"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = term.IsTerminal
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Log in and store the session",
		Example: `  schoolgate login teacher@school.org
  SCHOOLGATE_BASE_URL=https://school.org/api schoolgate login admin@school.org --password "$PASS"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				email = args[0]
			}
			reader := bufio.NewReader(a.streams.In)
			if email == "" {
				value, err := prompt(a, reader, "Email: ")
				if err != nil {
					return err
				}
				email = value
			}
			if password == "" {
				value, err := readPassword(a, reader)
				if err != nil {
					return err
				}
				password = value
			}
			if email == "" || password == "" {
				return fmt.Errorf("%w: email and password are required", errMissingArgument)
			}

			return a.withConsole(cmd.Context(), func(console *schoolgate.Console) error {
				principal, err := console.Login(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				if a.output == "json" {
					return printJSON(a.streams.Out, principal)
				}
				fmt.Fprintf(a.streams.Out, "Logged in as %s (%s)\n", principal.DisplayName(), principal.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func prompt(a *app, reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(a.streams.Err, label)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(a *app, reader *bufio.Reader) (string, error) {
	if file, ok := a.streams.In.(*os.File); ok && isTerminalFunc(int(file.Fd())) {
		fmt.Fprint(a.streams.Err, "Password: ")
		raw, err := readPasswordFunc(int(file.Fd()))
		fmt.Fprintln(a.streams.Err)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return prompt(a, reader, "Password: ")
}
