// Package audit checks a generated dataset against the causal properties
// the generator promises. The downstream root-cause analysis relies on
// these holding for every record, so a single violation fails the run.
package audit

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/record"
)

// Property names.
const (
	StockNonNegative    = "stock_non_negative"
	SnapshotChain       = "snapshot_chain"
	ScenarioPerItem     = "scenario_per_item"
	OneOrderPerPair     = "one_order_per_pair"
	OneStockoutPerPair  = "one_stockout_per_pair"
	OrderOnFirstCross   = "order_on_first_crossing"
	StockoutOnFirstZero = "stockout_on_first_zero"
	CategoryConsistent  = "category_consistent"
	RootCauseMatches    = "root_cause_matches_scenario"
	RuleThreshold       = "rule_threshold"
	OrderArrival        = "order_arrival"
	ForecastDistortion  = "forecast_distortion"
)

// Properties lists every property in evaluation order.
var Properties = []string{
	StockNonNegative,
	SnapshotChain,
	ScenarioPerItem,
	OneOrderPerPair,
	OneStockoutPerPair,
	OrderOnFirstCross,
	StockoutOnFirstZero,
	CategoryConsistent,
	RootCauseMatches,
	RuleThreshold,
	OrderArrival,
	ForecastDistortion,
}

// Violation is one failed property instance.
type Violation struct {
	Property string `json:"property"`
	Item     string `json:"item"`
	Location string `json:"location,omitempty"`
	Detail   string `json:"detail"`
}

func (v Violation) String() string {
	if v.Location == "" {
		return fmt.Sprintf("%s: %s: %s", v.Property, v.Item, v.Detail)
	}
	return fmt.Sprintf("%s: %s/%s: %s", v.Property, v.Item, v.Location, v.Detail)
}

// Report is the outcome of Check.
type Report struct {
	// Checked counts property evaluations, one per record or pair examined.
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations"`
}

// OK reports whether no property was violated.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// ByProperty counts violations per property.
func (r Report) ByProperty() map[string]int {
	out := make(map[string]int)
	for _, v := range r.Violations {
		out[v.Property]++
	}
	return out
}

type checker struct {
	ds     *record.Dataset
	rules  map[string]record.Rule
	series map[record.ItemLocation][]record.Snapshot
	orders map[record.ItemLocation][]record.Order
	events map[record.ItemLocation][]record.StockoutEvent
	report Report
}

func (c *checker) check(ok bool, property, item, location, format string, args ...any) {
	c.report.Checked++
	if ok {
		return
	}
	c.report.Violations = append(c.report.Violations, Violation{
		Property: property,
		Item:     item,
		Location: location,
		Detail:   fmt.Sprintf(format, args...),
	})
}

// Check evaluates every property over ds.
func Check(ds *record.Dataset) Report {
	c := &checker{
		ds:     ds,
		rules:  ds.RuleIndex(),
		series: ds.SnapshotsByPair(),
		orders: make(map[record.ItemLocation][]record.Order),
		events: make(map[record.ItemLocation][]record.StockoutEvent),
	}
	for _, o := range ds.Orders {
		key := record.ItemLocation{Item: o.Item, Location: o.Location}
		c.orders[key] = append(c.orders[key], o)
	}
	for _, e := range ds.Stockouts {
		key := record.ItemLocation{Item: e.Item, Location: e.Location}
		c.events[key] = append(c.events[key], e)
	}

	c.snapshots()
	c.scenarios()
	c.pairs()
	c.stockouts()
	c.thresholds()
	c.arrivals()
	c.forecasts()

	sort.SliceStable(c.report.Violations, func(i, j int) bool {
		return propertyIndex(c.report.Violations[i].Property) < propertyIndex(c.report.Violations[j].Property)
	})
	return c.report
}

func propertyIndex(p string) int {
	for i, q := range Properties {
		if q == p {
			return i
		}
	}
	return len(Properties)
}

func (c *checker) snapshots() {
	for _, s := range c.ds.Snapshots {
		c.check(s.StockOnHand >= 0, StockNonNegative, s.Item, s.Location, "stock %d on %s", s.StockOnHand, s.SnapshotTime.Format(record.TimeLayout))
	}
	for _, pair := range c.ds.Catalog {
		series := c.series[pair]
		if len(series) != c.ds.Days {
			c.check(false, SnapshotChain, pair.Item, pair.Location, "%d snapshots, want %d", len(series), c.ds.Days)
			continue
		}
		for d, s := range series {
			want := c.ds.Start.AddDate(0, 0, d)
			c.check(s.SnapshotTime.Equal(want), SnapshotChain, pair.Item, pair.Location, "day %d dated %s", d, s.SnapshotTime.Format(record.TimeLayout))
		}
	}
}

func (c *checker) scenarios() {
	for _, r := range c.ds.Rules {
		kind, ok := c.ds.Scenarios[r.Item]
		c.check(ok && kind == r.Scenario, ScenarioPerItem, r.Item, "", "rule scenario %s, assigned %s", r.Scenario, kind)
	}
	for _, f := range c.ds.Forecasts {
		_, ok := c.ds.Scenarios[f.Item]
		c.check(ok, ScenarioPerItem, f.Item, "", "forecast for item without scenario")
	}
}

// firstDay returns the first day offset matching pred, or -1.
func firstDay(series []record.Snapshot, pred func(record.Snapshot) bool) int {
	for d, s := range series {
		if pred(s) {
			return d
		}
	}
	return -1
}

func (c *checker) pairs() {
	for _, pair := range c.ds.Catalog {
		orders, events := c.orders[pair], c.events[pair]
		c.check(len(orders) <= 1, OneOrderPerPair, pair.Item, pair.Location, "%d orders", len(orders))
		c.check(len(events) <= 1, OneStockoutPerPair, pair.Item, pair.Location, "%d stockouts", len(events))

		series := c.series[pair]
		rule := c.rules[pair.Item]

		cross := firstDay(series, func(s record.Snapshot) bool {
			return s.StockOnHand > 0 && s.StockOnHand <= rule.ReorderThreshold
		})
		switch {
		case cross < 0:
			c.check(len(orders) == 0, OrderOnFirstCross, pair.Item, pair.Location, "order without threshold crossing")
		case len(orders) == 0:
			c.check(false, OrderOnFirstCross, pair.Item, pair.Location, "no order for crossing on day %d", cross)
		default:
			c.check(orders[0].OrderDate.Equal(series[cross].SnapshotTime), OrderOnFirstCross, pair.Item, pair.Location,
				"ordered %s, first crossing %s", orders[0].OrderDate.Format(record.TimeLayout), series[cross].SnapshotTime.Format(record.TimeLayout))
		}

		zero := firstDay(series, func(s record.Snapshot) bool { return s.StockOnHand == 0 })
		switch {
		case zero < 0:
			c.check(len(events) == 0, StockoutOnFirstZero, pair.Item, pair.Location, "stockout without zero stock")
		case len(events) == 0:
			c.check(false, StockoutOnFirstZero, pair.Item, pair.Location, "no stockout for zero stock on day %d", zero)
		default:
			c.check(events[0].StockoutDate.Equal(series[zero].SnapshotTime), StockoutOnFirstZero, pair.Item, pair.Location,
				"stockout %s, first zero %s", events[0].StockoutDate.Format(record.TimeLayout), series[zero].SnapshotTime.Format(record.TimeLayout))
		}
	}
}

func (c *checker) stockouts() {
	byItem := c.ds.OrdersByItem()
	for _, e := range c.ds.Stockouts {
		prior := false
		for _, o := range byItem[e.Item] {
			if o.OrderDate.Before(e.StockoutDate) {
				prior = true
				break
			}
		}

		want := record.DecisionFailure
		if prior {
			want = record.ExecutionFailure
		}
		c.check(e.Category == want && e.ReorderTriggered == prior, CategoryConsistent, e.Item, e.Location,
			"category %s reorder_triggered %t, prior order %t", e.Category, e.ReorderTriggered, prior)

		kind := c.ds.Scenarios[e.Item]
		c.check(e.RootCause == kind.Profile().RootCause, RootCauseMatches, e.Item, e.Location,
			"root cause %s for scenario %s", e.RootCause, kind)
	}
}

func (c *checker) thresholds() {
	for _, r := range c.ds.Rules {
		fault := r.Scenario.Profile().Rule
		want := r.SafetyStock + 20*r.LeadTimeDays
		if fault.ThresholdMargin != nil {
			want = r.SafetyStock + *fault.ThresholdMargin
		}
		c.check(r.ReorderThreshold == want, RuleThreshold, r.Item, "", "threshold %d, want %d", r.ReorderThreshold, want)
		c.check(r.SafetyStock >= 0 && r.LeadTimeDays > 0, RuleThreshold, r.Item, "",
			"safety stock %d lead time %d", r.SafetyStock, r.LeadTimeDays)
	}
}

func (c *checker) arrivals() {
	for _, o := range c.ds.Orders {
		delay := c.ds.Scenarios[o.Item].Profile().Delay
		if delay == nil {
			c.check(o.Status == record.OrderReceived && o.DelayReason == "" && o.ActualArrival.Equal(o.ExpectedArrival),
				OrderArrival, o.Item, o.Location, "%s: status %s, delay %d days", o.ID, o.Status, o.ArrivalDelayDays())
			continue
		}
		days := o.ArrivalDelayDays()
		c.check(o.Status == record.OrderDelayed && o.DelayReason == delay.Reason && days >= delay.Extra.Min && days <= delay.Extra.Max,
			OrderArrival, o.Item, o.Location, "%s: status %s reason %q, delay %d days", o.ID, o.Status, o.DelayReason, days)
	}
}

func (c *checker) forecasts() {
	for _, f := range c.ds.Forecasts {
		fault := c.ds.Scenarios[f.Item].Profile().Forecast
		want := f.ActualDemand
		if !fault.DemandFactor.IsZero() {
			want = int(decimal.NewFromInt(int64(f.ActualDemand)).Mul(fault.DemandFactor).Floor().IntPart())
		}
		ok := f.Demand == want && f.Demand >= 0
		if fault.StaleDays > 0 {
			ok = ok && f.GeneratedAt.Equal(c.ds.Start.AddDate(0, 0, -fault.StaleDays))
		}
		if fault.Confidence != nil {
			ok = ok && fault.Confidence.Equal(f.Confidence)
		}
		c.check(ok, ForecastDistortion, f.Item, "", "%s: forecast %d truth %d generated %s",
			f.Date.Format(record.TimeLayout), f.Demand, f.ActualDemand, f.GeneratedAt.Format(record.TimeLayout))
	}
}
