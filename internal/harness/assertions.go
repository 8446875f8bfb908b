package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/roach88/retrace/internal/audit"
	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
)

// dateLayout formats the "date" fact.
const dateLayout = "2006-01-02"

var (
	stockoutFields = map[string]bool{
		"day":               true,
		"date":              true,
		"reorder_triggered": true,
		"category":          true,
		"root_cause":        true,
	}
	orderFields = map[string]bool{
		"day":          true,
		"date":         true,
		"order_id":     true,
		"status":       true,
		"delay_reason": true,
		"quantity":     true,
		"lead_days":    true,
		"delay_days":   true,
	}
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Subject  string // Pair or stream under test
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Subject != "" {
		fmt.Fprintf(&buf, " [%s]", e.Subject)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// AssertionContext provides what assertions are evaluated against.
type AssertionContext struct {
	Ctx     context.Context
	Dataset *record.Dataset
	Store   *store.Store
}

// EvaluateAssertions evaluates all assertions and returns one message per
// failure.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertStockout:
			err = assertStockout(actx.Dataset, a)
		case AssertNoStockout:
			err = assertNoStockout(actx.Dataset, a)
		case AssertOrder:
			err = assertOrder(actx.Dataset, a)
		case AssertNoOrder:
			err = assertNoOrder(actx.Dataset, a)
		case AssertRowCount:
			if actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: row_count requires a store", i)
			} else {
				err = assertRowCount(actx.Ctx, actx.Store, actx.Dataset.RunID, a)
			}
		case AssertAuditClean:
			err = assertAuditClean(actx.Dataset)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func pairOf(a Assertion) record.ItemLocation {
	return record.ItemLocation{Item: a.Item, Location: a.Location}
}

func findStockout(ds *record.Dataset, pair record.ItemLocation) (record.StockoutEvent, bool) {
	for _, e := range ds.Stockouts {
		if e.Item == pair.Item && e.Location == pair.Location {
			return e, true
		}
	}
	return record.StockoutEvent{}, false
}

func findOrder(ds *record.Dataset, pair record.ItemLocation) (record.Order, bool) {
	for _, o := range ds.Orders {
		if o.Item == pair.Item && o.Location == pair.Location {
			return o, true
		}
	}
	return record.Order{}, false
}

func dayOffset(ds *record.Dataset, t time.Time) int {
	return record.DaysBetween(ds.Start, t)
}

func stockoutFacts(ds *record.Dataset, e record.StockoutEvent) map[string]any {
	return map[string]any{
		"day":               dayOffset(ds, e.StockoutDate),
		"date":              e.StockoutDate.Format(dateLayout),
		"reorder_triggered": e.ReorderTriggered,
		"category":          string(e.Category),
		"root_cause":        e.RootCause,
	}
}

func orderFacts(ds *record.Dataset, o record.Order) map[string]any {
	var reason any
	if o.DelayReason != "" {
		reason = o.DelayReason
	}
	return map[string]any{
		"day":          dayOffset(ds, o.OrderDate),
		"date":         o.OrderDate.Format(dateLayout),
		"order_id":     o.ID,
		"status":       string(o.Status),
		"delay_reason": reason,
		"quantity":     o.Quantity,
		"lead_days":    record.DaysBetween(o.OrderDate, o.ExpectedArrival),
		"delay_days":   o.ArrivalDelayDays(),
	}
}

func assertStockout(ds *record.Dataset, a Assertion) error {
	pair := pairOf(a)
	e, ok := findStockout(ds, pair)
	if !ok {
		return &AssertionError{
			Type:     AssertStockout,
			Subject:  pair.String(),
			Expected: "a stockout event",
			Actual:   "stock never reached zero",
		}
	}
	return matchFacts(AssertStockout, pair.String(), stockoutFacts(ds, e), a.Expect)
}

func assertNoStockout(ds *record.Dataset, a Assertion) error {
	pair := pairOf(a)
	if e, ok := findStockout(ds, pair); ok {
		return &AssertionError{
			Type:     AssertNoStockout,
			Subject:  pair.String(),
			Expected: "no stockout event",
			Actual:   fmt.Sprintf("stockout on day %d", dayOffset(ds, e.StockoutDate)),
		}
	}
	return nil
}

func assertOrder(ds *record.Dataset, a Assertion) error {
	pair := pairOf(a)
	o, ok := findOrder(ds, pair)
	if !ok {
		return &AssertionError{
			Type:     AssertOrder,
			Subject:  pair.String(),
			Expected: "a purchase order",
			Actual:   "stock never crossed the reorder threshold",
		}
	}
	return matchFacts(AssertOrder, pair.String(), orderFacts(ds, o), a.Expect)
}

func assertNoOrder(ds *record.Dataset, a Assertion) error {
	pair := pairOf(a)
	if o, ok := findOrder(ds, pair); ok {
		return &AssertionError{
			Type:     AssertNoOrder,
			Subject:  pair.String(),
			Expected: "no purchase order",
			Actual:   fmt.Sprintf("%s placed on day %d", o.ID, dayOffset(ds, o.OrderDate)),
		}
	}
	return nil
}

// assertRowCount reads counts back from the store, so it also covers the
// write path.
func assertRowCount(ctx context.Context, st *store.Store, runID string, a Assertion) error {
	stream, ok := streamByTable(a.Stream)
	if !ok {
		return fmt.Errorf("row_count: unknown stream %q", a.Stream)
	}

	counts, err := st.Counts(ctx, runID)
	if err != nil {
		return fmt.Errorf("row_count: %w", err)
	}
	if counts[stream] != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Subject:  a.Stream,
			Expected: fmt.Sprintf("%d rows", a.Count),
			Actual:   fmt.Sprintf("%d rows", counts[stream]),
		}
	}
	return nil
}

func assertAuditClean(ds *record.Dataset) error {
	report := audit.Check(ds)
	if report.OK() {
		return nil
	}

	lines := make([]string, len(report.Violations))
	for i, v := range report.Violations {
		lines[i] = v.String()
	}
	return &AssertionError{
		Type:     AssertAuditClean,
		Expected: "no violations",
		Actual:   fmt.Sprintf("%d violations:\n    %s", len(lines), strings.Join(lines, "\n    ")),
	}
}

// matchFacts checks that actual contains every expected field (subset
// match). Keys are checked in sorted order for stable messages.
func matchFacts(kind, subject string, actual, expected map[string]any) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		got, exists := actual[key]
		if !exists {
			return fmt.Errorf("%s: unknown field %q", kind, key)
		}
		if !valuesEqual(got, expected[key]) {
			return &AssertionError{
				Type:     kind,
				Subject:  subject,
				Expected: fmt.Sprintf("%s = %v", key, expected[key]),
				Actual:   fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

// valuesEqual compares a fact with a YAML-decoded value.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return reflect.DeepEqual(actual, expected)
}
