package engine

import (
	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/scenario"
)

// Overrides pins values that would otherwise be drawn. They exist for test
// fixtures and hand-written cases. Every pinned value still consumes its
// draw, so pinning one item leaves the rest of the dataset unchanged.
type Overrides struct {
	// Scenarios pins the scenario of an item.
	Scenarios map[string]scenario.Kind

	// SafetyStock pins an item's safety stock after any scenario redraw.
	SafetyStock map[string]int

	// LeadTime pins an item's lead time in days.
	LeadTime map[string]int

	// Demand pins an item's ground-truth demand to a constant per day.
	Demand map[string]int

	// StartingStock pins the opening stock of a pair.
	StartingStock map[record.ItemLocation]int
}

func (o Overrides) validate(c *Catalog) error {
	for item := range o.Scenarios {
		if !c.HasItem(item) {
			return newConfigError("overrides.scenarios", "unknown item %q", item)
		}
	}
	for item, v := range o.SafetyStock {
		if !c.HasItem(item) {
			return newConfigError("overrides.safety_stock", "unknown item %q", item)
		}
		if v < 0 {
			return newConfigError("overrides.safety_stock", "%s: must not be negative, got %d", item, v)
		}
	}
	for item, v := range o.LeadTime {
		if !c.HasItem(item) {
			return newConfigError("overrides.lead_time", "unknown item %q", item)
		}
		if v <= 0 {
			return newConfigError("overrides.lead_time", "%s: must be positive, got %d", item, v)
		}
	}
	for item, v := range o.Demand {
		if !c.HasItem(item) {
			return newConfigError("overrides.demand", "unknown item %q", item)
		}
		if v < 0 {
			return newConfigError("overrides.demand", "%s: must not be negative, got %d", item, v)
		}
	}
	for pair, v := range o.StartingStock {
		if !c.Has(pair) {
			return newConfigError("overrides.starting_stock", "unknown pair %s", pair)
		}
		if v < 0 {
			return newConfigError("overrides.starting_stock", "%s: must not be negative, got %d", pair, v)
		}
	}
	return nil
}
