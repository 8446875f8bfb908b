package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/audit"
	"github.com/roach88/retrace/internal/record"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Profile  ProfileFlags
	Stored   bool
	RunID    string
	Database string
}

// VerifyResult is the output of the verify command.
type VerifyResult struct {
	Source      string            `json:"source"` // "profile" or "store"
	RunID       string            `json:"run_id"`
	Checked     int               `json:"checked"`
	Violations  []audit.Violation `json:"violations"`
	Fingerprint string            `json:"fingerprint"`

	// StoredFingerprint is set when verifying a stored run.
	StoredFingerprint string `json:"stored_fingerprint,omitempty"`
}

// OK reports whether the dataset passed every check.
func (r VerifyResult) OK() bool {
	return len(r.Violations) == 0 && (r.StoredFingerprint == "" || r.StoredFingerprint == r.Fingerprint)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit a dataset against its causal properties",
		Long: `Audit a dataset against every causal property the generator promises.

By default a fresh dataset is generated from the profile and audited without
being written. With --stored (or --run) the dataset is loaded from the SQLite
store instead, and its content is also checked against the fingerprint
recorded when it was written.

Exit codes:
  0 - All properties hold
  1 - Violations found or stored data does not match its fingerprint
  2 - Command error (bad profile, run not found, etc.)

Examples:
  retrace verify --profile small.cue
  retrace verify --stored
  retrace verify --run 0193a1c4-... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Profile.seedSet = cmd.Flags().Changed("seed")
			return runVerify(opts, cmd)
		},
	}

	addProfileFlags(cmd, &opts.Profile)
	cmd.Flags().BoolVar(&opts.Stored, "stored", false, "verify the latest stored run")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "verify a stored run by id")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	var (
		ds     *record.Dataset
		result VerifyResult
	)
	if opts.Stored || opts.RunID != "" {
		st, err := openStore(opts.databasePath(opts.Database))
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := resolveRun(ctx, st, opts.RunID)
		if err != nil {
			return err
		}
		if ds, err = st.LoadDataset(ctx, run.ID); err != nil {
			return WrapExitError(ExitCommandError, "failed to load dataset", err)
		}
		result.Source = "store"
		result.StoredFingerprint = run.Fingerprint
	} else {
		p, err := opts.loadProfile(opts.Profile)
		if err != nil {
			return err
		}
		if ds, err = opts.generate(ctx, p, opts.runIDs()); err != nil {
			return err
		}
		result.Source = "profile"
	}

	report := audit.Check(ds)
	fingerprint, err := record.Fingerprint(ds)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint dataset", err)
	}
	result.RunID = ds.RunID
	result.Checked = report.Checked
	result.Violations = report.Violations
	result.Fingerprint = fingerprint
	if result.Violations == nil {
		result.Violations = []audit.Violation{}
	}

	var failure *CLIError
	if !result.OK() {
		failure = &CLIError{Code: CodeAuditFailed, Message: verifyFailureMessage(result)}
	}

	err = opts.formatter(cmd).Emit(result, failure, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s (%s)\n", result.RunID, result.Source)
		for _, v := range result.Violations {
			fmt.Fprintf(w, "✗ %s\n", v)
		}
		if result.StoredFingerprint != "" {
			if result.StoredFingerprint == result.Fingerprint {
				fmt.Fprintln(w, "✓ stored data matches its fingerprint")
			} else {
				fmt.Fprintf(w, "✗ fingerprint mismatch: recorded %s, data %s\n", result.StoredFingerprint, result.Fingerprint)
			}
		}
		if result.OK() {
			fmt.Fprintf(w, "✓ %d properties hold (%d checks)\n", len(audit.Properties), result.Checked)
		}
	})
	if err != nil {
		return err
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func verifyFailureMessage(r VerifyResult) string {
	if len(r.Violations) > 0 {
		return fmt.Sprintf("%d property violation(s)", len(r.Violations))
	}
	return "stored data does not match its fingerprint"
}
