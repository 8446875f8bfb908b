package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database  string
	RunID     string
	Category  string
	RootCause string
	Limit     int
}

// EventsResult is the output of the events command.
type EventsResult struct {
	RunID  string        `json:"run_id"`
	Events []EventRecord `json:"events"`
}

// EventRecord is the output form of a stockout event.
type EventRecord struct {
	Item             string `json:"item_id"`
	Location         string `json:"warehouse_id"`
	StockoutDate     string `json:"stockout_date"`
	ReorderTriggered bool   `json:"reorder_triggered"`
	Category         string `json:"failure_category"`
	RootCause        string `json:"root_cause"`
	Confidence       string `json:"analysis_confidence"`
	AnalyzedAt       string `json:"analyzed_at"`
}

func newEventRecord(e record.StockoutEvent) EventRecord {
	return EventRecord{
		Item:             e.Item,
		Location:         e.Location,
		StockoutDate:     e.StockoutDate.Format(record.TimeLayout),
		ReorderTriggered: e.ReorderTriggered,
		Category:         string(e.Category),
		RootCause:        e.RootCause,
		Confidence:       e.Confidence.String(),
		AnalyzedAt:       e.AnalyzedAt.Format(record.TimeLayout),
	}
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List stored stockout events",
		Long: `List the stockout events of a stored run, ordered by stockout date.

Examples:
  retrace events --category EXECUTION_FAILURE
  retrace events --root-cause SUPPLIER_DELAY --limit 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default latest)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "filter by failure category (EXECUTION_FAILURE|DECISION_FAILURE)")
	cmd.Flags().StringVar(&opts.RootCause, "root-cause", "", "filter by root cause")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum events to list (0 for all)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	switch record.FailureCategory(opts.Category) {
	case "", record.ExecutionFailure, record.DecisionFailure:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid category %q: must be %s or %s", opts.Category, record.ExecutionFailure, record.DecisionFailure))
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("limit must not be negative, got %d", opts.Limit))
	}

	st, err := openStore(opts.databasePath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}
	events, err := st.ListStockouts(ctx, run.ID, store.EventFilter{
		Category:  opts.Category,
		RootCause: opts.RootCause,
		Limit:     opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list events", err)
	}

	result := EventsResult{RunID: run.ID, Events: make([]EventRecord, len(events))}
	for i, e := range events {
		result.Events[i] = newEventRecord(e)
	}

	return opts.formatter(cmd).Emit(result, nil, func(w io.Writer) {
		if len(result.Events) == 0 {
			fmt.Fprintln(w, "No matching stockout events.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tITEM\tWAREHOUSE\tCATEGORY\tROOT CAUSE\tTRIGGERED\tCONFIDENCE")
		for _, e := range result.Events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
				e.StockoutDate[:10], e.Item, e.Location, e.Category, e.RootCause, e.ReorderTriggered, e.Confidence)
		}
		tw.Flush()
	})
}
