package engine

import (
	"time"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/rng"
	"github.com/roach88/retrace/internal/scenario"
)

// Rule draw ranges.
const (
	minSafetyStock = 50
	maxSafetyStock = 100
	minLeadTime    = 5
	maxLeadTime    = 10

	// thresholdDaysPerLeadDay is the conservative daily demand the baseline
	// threshold covers for every lead-time day.
	thresholdDaysPerLeadDay = 20

	minRuleAgeDays = 30
	maxRuleAgeDays = 180
)

// RuleOwners is the roster rule owners are drawn from.
var RuleOwners = []string{"Alice", "Bob", "Charlie", "Diana"}

// BaselineThreshold is the healthy reorder threshold for a rule.
func BaselineThreshold(safetyStock, leadTime int) int {
	return safetyStock + thresholdDaysPerLeadDay*leadTime
}

// RuleGenerator produces one replenishment rule per item.
type RuleGenerator struct {
	src       *rng.Source
	start     time.Time
	overrides Overrides
}

// NewRuleGenerator creates a rule generator. Each item draws from its own
// stream split from src.
func NewRuleGenerator(src *rng.Source, start time.Time, overrides Overrides) *RuleGenerator {
	return &RuleGenerator{src: src, start: start, overrides: overrides}
}

// Generate returns the rule of item under kind.
//
// Draw order is fixed: safety stock, lead time, scenario redraw, age,
// owner. Pinned values replace draws after they are made.
func (g *RuleGenerator) Generate(item string, kind scenario.Kind) record.Rule {
	src := g.src.Split("rules", item)
	fault := kind.Profile().Rule

	safety := src.IntRange(minSafetyStock, maxSafetyStock)
	lead := src.IntRange(minLeadTime, maxLeadTime)
	if fault.SafetyStock != nil {
		safety = src.IntRange(fault.SafetyStock.Min, fault.SafetyStock.Max)
	}
	age := src.IntRange(minRuleAgeDays, maxRuleAgeDays)
	owner := RuleOwners[src.Pick(len(RuleOwners))]

	if v, ok := g.overrides.SafetyStock[item]; ok {
		safety = v
	}
	if v, ok := g.overrides.LeadTime[item]; ok {
		lead = v
	}

	threshold := BaselineThreshold(safety, lead)
	if fault.ThresholdMargin != nil {
		threshold = safety + *fault.ThresholdMargin
	}

	return record.Rule{
		Item:             item,
		SafetyStock:      safety,
		LeadTimeDays:     lead,
		ReorderThreshold: threshold,
		LastUpdated:      g.start.AddDate(0, 0, -age),
		Owner:            owner,
		Scenario:         kind,
	}
}
