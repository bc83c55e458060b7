// Package cli implements the schoolgate command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/devmarvs/schoolgate"
	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/config"
	"github.com/devmarvs/schoolgate/logging"
	"github.com/devmarvs/schoolgate/metrics"
)

// Streams are the command's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type app struct {
	streams Streams

	configPath  string
	dotenvPath  string
	environment string
	host        string
	baseURL     string
	output      string
	logLevel    string
	showMetrics bool

	// options are appended to every console, e.g. a test transport.
	options []schoolgate.Option
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	streams := Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
	rootCmd := newRootCmd(streams)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		printError(streams, output, err)
		return 1
	}
	return 0
}

func printError(streams Streams, output string, err error) {
	if output == "json" {
		errObj := map[string]any{"error": err.Error()}
		if appErr := apperr.As(err); appErr != nil {
			errObj["kind"] = appErr.Kind
			errObj["message"] = appErr.Message
			if appErr.Status != 0 {
				errObj["http_status"] = appErr.Status
			}
		}
		_ = printJSON(streams.Out, errObj)
		return
	}
	if appErr := apperr.As(err); appErr != nil {
		fmt.Fprintf(streams.Err, "Error: %s\n", describe(appErr))
		return
	}
	fmt.Fprintf(streams.Err, "Error: %v\n", err)
}

func describe(err *apperr.Error) string {
	switch err.Kind {
	case apperr.KindAuthenticationRequired:
		if err.Status == 0 {
			return "not logged in; run `schoolgate login`"
		}
	case apperr.KindSessionExpired:
		return "session expired; run `schoolgate login` again"
	}
	return err.Message
}

func newRootCmd(streams Streams, options ...schoolgate.Option) *cobra.Command {
	a := &app{streams: streams, options: options}

	rootCmd := &cobra.Command{
		Use:           "schoolgate",
		Short:         "School administration console",
		Long:          "Command-line console for the school administration API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOutputFormat(a.output)
		},
	}
	rootCmd.SetIn(streams.In)
	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.Err)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (JSON or YAML)")
	flags.StringVar(&a.dotenvPath, "dotenv", ".env", "Dotenv file loaded into the environment if present")
	flags.StringVar(&a.environment, "env", "", "Environment tier (development, staging, production)")
	flags.StringVar(&a.host, "host", "", "Hosting domain used to infer the environment tier")
	flags.StringVar(&a.baseURL, "base-url", "", "API base URL")
	flags.StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&a.showMetrics, "metrics", false, "Print call metrics to stderr on exit")

	rootCmd.AddCommand(newLoginCmd(a))
	rootCmd.AddCommand(newLogoutCmd(a))
	rootCmd.AddCommand(newWhoamiCmd(a))
	rootCmd.AddCommand(newEndpointsCmd(a))
	rootCmd.AddCommand(newCallCmd(a))
	return rootCmd
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// loadConfig layers files, dotenv and SCHOOLGATE_* variables, then the
// command-line flags, before resolving the environment tier.
func (a *app) loadConfig() (config.Config, error) {
	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			return config.Config{}, fmt.Errorf("config file: %w", err)
		}
	}

	loader := config.NewLoader()
	loader.Override = func(cfg config.Config) config.Config {
		if a.environment != "" {
			cfg.Environment = config.Environment(a.environment)
		}
		if a.host != "" {
			cfg.Host = a.host
		}
		if a.baseURL != "" {
			cfg.BaseURL = a.baseURL
		}
		if a.logLevel != "" {
			cfg.LogLevel = a.logLevel
		}
		return cfg
	}
	return loader.Load(config.Profile{
		BasePath:     a.configPath,
		DotenvPath:   a.dotenvPath,
		EnvPrefix:    config.DefaultEnvPrefix,
		AllowMissing: true,
	})
}

// withConsole opens a console for one command and closes it afterwards,
// printing metrics first when --metrics is set.
func (a *app) withConsole(ctx context.Context, fn func(*schoolgate.Console) error) (err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: a.streams.Err})
	options := append([]schoolgate.Option{schoolgate.WithLogger(logger)}, a.options...)
	console, err := schoolgate.New(ctx, cfg, options...)
	if err != nil {
		return err
	}
	defer func() {
		if a.showMetrics {
			if metricsErr := metrics.WritePrometheus(a.streams.Err, console.Metrics()); metricsErr != nil && err == nil {
				err = metricsErr
			}
		}
		if closeErr := console.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(console)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

var errMissingArgument = errors.New("missing argument")
