package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/audit"
	"github.com/roach88/retrace/internal/export"
	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Profile  ProfileFlags
	OutDir   string
	Database string
	Postgres string
	NoCSV    bool
	NoStore  bool
}

// GenerateResult is the output of the generate command.
type GenerateResult struct {
	RunID       string         `json:"run_id"`
	Seed        int64          `json:"seed"`
	Fingerprint string         `json:"fingerprint"`
	Counts      map[string]int `json:"counts"`
	Sinks       []string       `json:"sinks"`
	OutputDir   string         `json:"output_dir,omitempty"`
	Database    string         `json:"database,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dataset and write it to the configured sinks",
		Long: `Generate a dataset from a profile and write the five streams.

The dataset is audited before anything is written; a dataset that breaks a
causal property is rejected. By default the streams are written as CSV files
and to the SQLite store. A Postgres DSN adds the warehouse sink.

Examples:
  retrace generate
  retrace generate --profile small.cue --seed 7 --out ./data
  retrace generate --no-csv --postgres postgres://localhost/retrace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Profile.seedSet = cmd.Flags().Changed("seed")
			return runGenerate(opts, cmd)
		},
	}

	addProfileFlags(cmd, &opts.Profile)
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "CSV output directory (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Postgres, "postgres", "", "Postgres DSN; enables the warehouse sink")
	cmd.Flags().BoolVar(&opts.NoCSV, "no-csv", false, "skip the CSV sink")
	cmd.Flags().BoolVar(&opts.NoStore, "no-db", false, "skip the SQLite sink")

	return cmd
}

func addProfileFlags(cmd *cobra.Command, flags *ProfileFlags) {
	cmd.Flags().StringVarP(&flags.Path, "profile", "p", "", "CUE dataset profile (default from config, else built-in)")
	cmd.Flags().Int64Var(&flags.Seed, "seed", 0, "override the profile seed")
	cmd.Flags().IntVar(&flags.Workers, "workers", 0, "inventory workers (default GOMAXPROCS)")
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := opts.Logger

	p, err := opts.loadProfile(opts.Profile)
	if err != nil {
		return err
	}
	ds, err := opts.generate(ctx, p, opts.runIDs())
	if err != nil {
		return err
	}

	report := audit.Check(ds)
	if !report.OK() {
		for _, v := range report.Violations {
			log.Error().Str("property", v.Property).Str("item", v.Item).Str("location", v.Location).Msg(v.Detail)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("dataset failed audit with %d violations; nothing written", len(report.Violations)))
	}

	fingerprint, err := record.Fingerprint(ds)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint dataset", err)
	}
	profileJSON, err := p.JSON()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode profile", err)
	}

	result := GenerateResult{
		RunID:       ds.RunID,
		Seed:        ds.Seed,
		Fingerprint: fingerprint,
		Counts:      datasetCounts(ds),
		Sinks:       []string{},
	}

	var sinks []export.Sink
	if !opts.NoCSV {
		result.OutputDir = opts.OutDir
		if result.OutputDir == "" {
			result.OutputDir = opts.Config.Output.Dir
		}
		sinks = append(sinks, export.CSVWriter{Dir: result.OutputDir})
	}
	if !opts.NoStore {
		result.Database = opts.databasePath(opts.Database)
		st, err := openStore(result.Database)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("error closing database")
			}
		}()
		sinks = append(sinks, export.StoreSink{Store: st, Meta: store.RunMeta{
			Profile:     profileJSON,
			Fingerprint: fingerprint,
			CreatedAt:   opts.clock().Now(),
		}})
	}

	pg := opts.Config.Postgres
	if opts.Postgres != "" {
		pg.DSN = opts.Postgres
	}
	if pg.Enabled() {
		pool, err := export.NewPool(ctx, pg.DSN, pg.MaxConns)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to postgres", err)
		}
		defer pool.Close()
		sinks = append(sinks, export.NewPostgresWriter(pool))
	}

	for _, s := range sinks {
		result.Sinks = append(result.Sinks, s.Name())
	}
	log.Debug().Strs("sinks", result.Sinks).Msg("writing dataset")

	if err := export.WriteAll(ctx, ds, sinks...); err != nil {
		return WrapExitError(ExitCommandError, "failed to write dataset", err)
	}
	log.Info().Str("run_id", ds.RunID).Str("fingerprint", fingerprint).Msg("dataset written")

	return opts.formatter(cmd).Emit(result, nil, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s (seed %d)\n", result.RunID, result.Seed)
		fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
		writeCounts(w, result.Counts)
		if result.OutputDir != "" {
			fmt.Fprintf(w, "CSV files written to %s\n", result.OutputDir)
		}
		if result.Database != "" {
			fmt.Fprintf(w, "Stored in %s\n", result.Database)
		}
	})
}

// writeCounts prints per-stream row counts in stream order.
func writeCounts(w io.Writer, counts map[string]int) {
	fmt.Fprintln(w, "Rows:")
	for _, stream := range record.Streams {
		fmt.Fprintf(w, "  %-20s %d\n", stream.Table(), counts[stream.Table()])
	}
}
