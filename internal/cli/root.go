package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/config"
	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config and Logger are set before any subcommand runs.
	Config *config.Config
	Logger zerolog.Logger

	// Clock and RunIDs override the generator collaborators (for testing).
	// If nil, the system clock and UUIDv7 run ids are used.
	Clock  engine.Clock
	RunIDs engine.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the retrace CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrace",
		Short: "retrace - synthetic stockout datasets",
		Long: `Generate synthetic supply-chain datasets with known stockout root causes.

Every item is assigned a failure scenario that is injected into its reorder
rule, forecast or purchase orders. Stockouts are then attributed to the
injected cause, giving a labelled dataset for root-cause analysis.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./retrace.yaml if present)")

	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads configuration and builds the logger. Logs go to the
// command's stderr so stdout carries only command output.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	level := cfg.App.LogLevel
	if o.Verbose {
		level = "debug"
	}
	o.Logger = logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: level,
		Out:   cmd.ErrOrStderr(),
	})
	return nil
}

func (o *RootOptions) clock() engine.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return engine.SystemClock{}
}

func (o *RootOptions) runIDs() engine.RunIDGenerator {
	if o.RunIDs != nil {
		return o.RunIDs
	}
	return engine.UUIDv7Generator{}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
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
