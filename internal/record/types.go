// Package record defines the five generated record streams and the dataset
// that carries them.
//
// Some fields exist only in memory: the scenario label on a rule, the
// ground-truth demand on a forecast and the location on an order. They drive
// the generator and the audit but are excluded from the persisted schemas
// returned by Dataset.Rows.
package record

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/scenario"
)

// ItemLocation is one (item, location) pair of the simulation universe.
type ItemLocation struct {
	Item     string
	Location string
}

// String renders the pair as ITEM/LOCATION.
func (p ItemLocation) String() string {
	return p.Item + "/" + p.Location
}

// Rule is a replenishment rule for one item.
type Rule struct {
	Item             string
	SafetyStock      int
	LeadTimeDays     int
	ReorderThreshold int
	LastUpdated      time.Time
	Owner            string

	// Scenario is never emitted.
	Scenario scenario.Kind
}

// ForecastType distinguishes baseline and promotional forecasts.
type ForecastType string

const (
	ForecastBaseline ForecastType = "BASELINE"
	ForecastPromo    ForecastType = "PROMO"
)

// Forecast is the published demand forecast of one item for one day.
type Forecast struct {
	Item        string
	Date        time.Time
	Demand      int
	GeneratedAt time.Time
	Type        ForecastType
	Confidence  decimal.Decimal

	// ActualDemand is the ground truth that depletes inventory. Never emitted.
	ActualDemand int
}

// Snapshot is the end-of-day stock of one pair.
type Snapshot struct {
	Item         string
	Location     string
	StockOnHand  int
	SnapshotTime time.Time
	Stale        bool
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderReceived OrderStatus = "RECEIVED"
	OrderDelayed  OrderStatus = "DELAYED"
)

// Order is a replenishment purchase order.
type Order struct {
	ID              string
	Item            string
	OrderDate       time.Time
	ExpectedArrival time.Time
	ActualArrival   time.Time
	Quantity        int
	Status          OrderStatus
	DelayReason     string // empty means null

	// Location is the pair that triggered the order. Never emitted.
	Location string
}

// ArrivalDelayDays is the number of days the actual arrival trails the
// expected arrival.
func (o Order) ArrivalDelayDays() int {
	return DaysBetween(o.ExpectedArrival, o.ActualArrival)
}

// DaysBetween counts calendar days from one date to another. Clock time and
// zone offsets are ignored, so a DST change never shortens a day.
func DaysBetween(from, to time.Time) int {
	return int(civilDate(to).Sub(civilDate(from)) / (24 * time.Hour))
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FailureCategory classifies a stockout.
type FailureCategory string

const (
	// ExecutionFailure: a reorder fired but did not prevent the stockout.
	ExecutionFailure FailureCategory = "EXECUTION_FAILURE"
	// DecisionFailure: no reorder fired before the stockout.
	DecisionFailure FailureCategory = "DECISION_FAILURE"
)

// StockoutEvent is the first zero-stock day of a pair with its attribution.
type StockoutEvent struct {
	Item             string
	Location         string
	StockoutDate     time.Time
	ReorderTriggered bool
	Category         FailureCategory
	RootCause        string
	Confidence       decimal.Decimal
	AnalyzedAt       time.Time
}

// Dataset is the output of one generation run. It is not modified after
// the generator returns it and may be read from many goroutines.
type Dataset struct {
	RunID string
	Seed  int64
	Start time.Time
	Days  int

	Catalog   []ItemLocation
	Scenarios map[string]scenario.Kind

	Rules     []Rule
	Forecasts []Forecast
	Snapshots []Snapshot
	Orders    []Order
	Stockouts []StockoutEvent
}

// RuleIndex maps item to rule.
func (d *Dataset) RuleIndex() map[string]Rule {
	idx := make(map[string]Rule, len(d.Rules))
	for _, r := range d.Rules {
		idx[r.Item] = r
	}
	return idx
}

// OrdersByItem groups orders by item, preserving order id order.
func (d *Dataset) OrdersByItem() map[string][]Order {
	idx := make(map[string][]Order)
	for _, o := range d.Orders {
		idx[o.Item] = append(idx[o.Item], o)
	}
	return idx
}

// SnapshotsByPair groups snapshots by pair in chronological order.
func (d *Dataset) SnapshotsByPair() map[ItemLocation][]Snapshot {
	idx := make(map[ItemLocation][]Snapshot, len(d.Catalog))
	for _, s := range d.Snapshots {
		key := ItemLocation{Item: s.Item, Location: s.Location}
		idx[key] = append(idx[key], s)
	}
	return idx
}
