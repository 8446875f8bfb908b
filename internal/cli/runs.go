package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.databasePath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	return opts.formatter(cmd).Emit(runs, nil, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs stored.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSEED\tSHAPE\tCREATED\tFINGERPRINT")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
				r.ID, r.Seed, shape(r), r.CreatedAt.Format(record.TimeLayout), shortFingerprint(r.Fingerprint))
		}
		tw.Flush()
	})
}

func shape(r store.Run) string {
	return fmt.Sprintf("%dx%dx%d", r.Items, r.Locations, r.Days)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
