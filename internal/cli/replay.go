package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/profile"
	"github.com/roach88/retrace/internal/record"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayResult is the output of the replay command.
type ReplayResult struct {
	RunID         string `json:"run_id"`
	Seed          int64  `json:"seed"`
	Recorded      string `json:"recorded_fingerprint"`
	Replayed      string `json:"replayed_fingerprint"`
	Stored        string `json:"stored_fingerprint"`
	Deterministic bool   `json:"deterministic"`
	Intact        bool   `json:"intact"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Regenerate a stored run and compare fingerprints",
		Long: `Regenerate a stored run from its recorded profile and seed.

Three fingerprints are compared: the one recorded when the run was written,
the one of the regenerated dataset (deterministic when equal) and the one of
the rows currently in the store (intact when equal).

Exit codes:
  0 - Replay matches
  1 - Non-deterministic replay or modified stored rows
  2 - Command error (database not found, run not found, etc.)

Examples:
  retrace replay
  retrace replay --run 0193a1c4-... --db ./retrace.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default latest)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openStore(opts.databasePath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	p, err := profile.Decode(run.Profile)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("run %s has an unreadable profile", run.ID), err)
	}
	opts.Logger.Debug().Str("run_id", run.ID).Int64("seed", p.Seed).Msg("replaying run")

	replayed, err := opts.generate(ctx, p, engine.NewFixedGenerator(run.ID))
	if err != nil {
		return err
	}
	replayedFP, err := record.Fingerprint(replayed)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint replay", err)
	}

	stored, err := st.LoadDataset(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load stored dataset", err)
	}
	storedFP, err := record.Fingerprint(stored)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint stored dataset", err)
	}

	result := ReplayResult{
		RunID:         run.ID,
		Seed:          p.Seed,
		Recorded:      run.Fingerprint,
		Replayed:      replayedFP,
		Stored:        storedFP,
		Deterministic: replayedFP == run.Fingerprint,
		Intact:        storedFP == run.Fingerprint,
	}

	var failure *CLIError
	switch {
	case !result.Deterministic:
		failure = &CLIError{Code: CodeReplayMismatch, Message: "replay does not reproduce the recorded dataset"}
	case !result.Intact:
		failure = &CLIError{Code: CodeReplayMismatch, Message: "stored rows no longer match the recorded fingerprint"}
	}

	err = opts.formatter(cmd).Emit(result, failure, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s (seed %d)\n", result.RunID, result.Seed)
		fmt.Fprintf(w, "  recorded  %s\n", result.Recorded)
		fmt.Fprintf(w, "  replayed  %s\n", result.Replayed)
		fmt.Fprintf(w, "  stored    %s\n", result.Stored)
		fmt.Fprintln(w, mark(result.Deterministic, "deterministic"))
		fmt.Fprintln(w, mark(result.Intact, "stored rows intact"))
	})
	if err != nil {
		return err
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func mark(ok bool, label string) string {
	if ok {
		return "✓ " + label
	}
	return "✗ not " + label
}
