package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/retrace/internal/record"
)

// Outcome is the deterministic summary of a case run that golden files
// record: every order and stockout, without drawn quantities, arrival
// dates or confidences.
func Outcome(name string, ds *record.Dataset) map[string]any {
	orders := make([]any, len(ds.Orders))
	for i, o := range ds.Orders {
		orders[i] = map[string]any{
			"order_id":     o.ID,
			"item":         o.Item,
			"location":     o.Location,
			"order_date":   o.OrderDate,
			"status":       string(o.Status),
			"delay_reason": orderFacts(ds, o)["delay_reason"],
		}
	}

	stockouts := make([]any, len(ds.Stockouts))
	for i, e := range ds.Stockouts {
		stockouts[i] = map[string]any{
			"item":              e.Item,
			"location":          e.Location,
			"stockout_date":     e.StockoutDate,
			"reorder_triggered": e.ReorderTriggered,
			"category":          string(e.Category),
			"root_cause":        e.RootCause,
		}
	}

	return map[string]any{
		"case":      name,
		"orders":    orders,
		"stockouts": stockouts,
	}
}

// RunWithGolden executes a case and compares its outcome against
// testdata/golden/{case.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, c *Case) (*Result, error) {
	t.Helper()

	result, err := Run(c)
	if err != nil {
		return nil, err
	}

	data, err := record.MarshalCanonical(Outcome(c.Name, result.Dataset))
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, c.Name, data)
	return result, nil
}
