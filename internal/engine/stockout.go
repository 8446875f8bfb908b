package engine

import (
	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/rng"
	"github.com/roach88/retrace/internal/scenario"
)

const (
	minAnalysisConfidence = 0.75
	maxAnalysisConfidence = 0.95
)

// StockoutDetector records the first zero-stock day of each pair and
// attributes it.
type StockoutDetector struct {
	src       *rng.Source
	clock     Clock
	scenarios map[string]scenario.Kind
}

// NewStockoutDetector creates a detector.
func NewStockoutDetector(src *rng.Source, clock Clock, scenarios map[string]scenario.Kind) *StockoutDetector {
	return &StockoutDetector{src: src, clock: clock, scenarios: scenarios}
}

// Detect scans pairs in catalog order.
func (d *StockoutDetector) Detect(pairs []record.ItemLocation, series SnapshotSeries, orders []record.Order) []record.StockoutEvent {
	byItem := make(map[string][]record.Order)
	for _, o := range orders {
		byItem[o.Item] = append(byItem[o.Item], o)
	}

	var events []record.StockoutEvent
	for i, pair := range pairs {
		for _, snap := range series[i] {
			if snap.StockOnHand != 0 {
				continue
			}
			events = append(events, d.attribute(pair, snap, byItem[pair.Item]))
			break
		}
	}
	return events
}

func (d *StockoutDetector) attribute(pair record.ItemLocation, snap record.Snapshot, orders []record.Order) record.StockoutEvent {
	src := d.src.Split("stockout", pair.Item, pair.Location)

	triggered := false
	for _, o := range orders {
		if o.OrderDate.Before(snap.SnapshotTime) {
			triggered = true
			break
		}
	}

	category := record.DecisionFailure
	if triggered {
		category = record.ExecutionFailure
	}

	return record.StockoutEvent{
		Item:             pair.Item,
		Location:         pair.Location,
		StockoutDate:     snap.SnapshotTime,
		ReorderTriggered: triggered,
		Category:         category,
		RootCause:        d.scenarios[pair.Item].Profile().RootCause,
		Confidence:       roundConfidence(src.Uniform(minAnalysisConfidence, maxAnalysisConfidence)),
		AnalyzedAt:       d.clock.Now(),
	}
}
