package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/store"
)

// SummaryOptions holds flags for the summary command.
type SummaryOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// SummaryResult is the output of the summary command.
type SummaryResult struct {
	Run       store.Run       `json:"run"`
	Counts    map[string]int  `json:"counts"`
	Stockouts store.Breakdown `json:"stockouts"`
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummaryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize a stored run",
		Long: `Print row counts per stream and the stockout breakdown by root cause and
by failure category for a stored run.

Examples:
  retrace summary
  retrace summary --run 0193a1c4-... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default latest)")

	return cmd
}

func runSummary(opts *SummaryOptions, cmd *cobra.Command) error {
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
	counts, err := st.Counts(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count rows", err)
	}
	breakdown, err := st.StockoutBreakdown(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to aggregate stockouts", err)
	}

	result := SummaryResult{Run: run, Counts: streamCounts(counts), Stockouts: breakdown}
	return opts.formatter(cmd).Emit(result, nil, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s (seed %d, %d items x %d locations, %d days from %s)\n",
			run.ID, run.Seed, run.Items, run.Locations, run.Days, run.Start.Format("2006-01-02"))
		fmt.Fprintf(w, "Fingerprint: %s\n", run.Fingerprint)
		writeCounts(w, result.Counts)
		writeBreakdown(w, "Stockouts by root cause:", breakdown.ByRootCause)
		writeBreakdown(w, "Stockouts by failure category:", breakdown.ByCategory)
	})
}

func writeBreakdown(w io.Writer, title string, counts map[string]int) {
	fmt.Fprintln(w, title)
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-26s %d\n", k, counts[k])
	}
}
