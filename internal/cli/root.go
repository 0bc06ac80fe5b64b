package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/viggyfresh/prom/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is loaded before any subcommand runs.
	Config *config.Config

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the prom CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{viper: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "prom",
		Short: "prom - criteria queries over SQLite",
		Long: `Build and run criteria queries against tables described by a YAML or
CUE schema file. Tables and columns missing from the database are created
on first use; reads can be cached for the lifetime of a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := config.BindFlags(opts.viper, cmd.Flags()); err != nil {
				return WrapExitError(ExitCommandError, "failed to bind flags", err)
			}
			cfg, err := config.Load(opts.viper, opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Config = cfg
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.ConfigFile, "config", "c", "", "config file (yaml, json or toml)")

	pf.String("db", "prom.db", "path to SQLite database")
	pf.String("driver", "sqlite3", "SQLite driver (sqlite3|sqlite)")
	pf.Duration("busy-timeout", 5*time.Second, "how long to wait on a locked database")
	pf.StringP("schema", "s", "", "schema definition file (.yaml, .yml or .cue)")
	pf.StringP("table", "t", "", "table to query when the schema defines several")
	pf.Int("chunk-size", 5000, "rows fetched per chunk when iterating without a limit")
	pf.Bool("cache", false, "cache reads for the duration of the command")
	pf.Duration("cache-ttl", time.Hour, "cache entry lifetime")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")
	pf.String("metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewAllCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewMethodsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd, opts
}

// Main runs the CLI with args and returns the process exit code. Failures
// are reported on stderr in the selected format.
func Main(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stderr, Verbose: opts.Verbose}
	_ = f.Error(ErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
