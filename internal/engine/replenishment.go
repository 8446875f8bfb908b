package engine

import (
	"fmt"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/rng"
)

const (
	minOrderQuantity = 100
	maxOrderQuantity = 200
)

// OrderID formats the n-th order id.
func OrderID(n int) string { return fmt.Sprintf("PO_%06d", n) }

// ReplenishmentEngine emits at most one order per pair, on the first day
// stock is positive and at or below the reorder threshold. Orders never
// replenish the simulated stock.
type ReplenishmentEngine struct {
	src   *rng.Source
	rules map[string]record.Rule
}

// NewReplenishmentEngine creates an engine over the item rules.
func NewReplenishmentEngine(src *rng.Source, rules map[string]record.Rule) *ReplenishmentEngine {
	return &ReplenishmentEngine{src: src, rules: rules}
}

// Generate scans pairs in catalog order. Order ids are numbered in that
// order.
func (e *ReplenishmentEngine) Generate(pairs []record.ItemLocation, series SnapshotSeries) []record.Order {
	var orders []record.Order
	for i, pair := range pairs {
		rule := e.rules[pair.Item]
		for _, snap := range series[i] {
			if snap.StockOnHand <= 0 || snap.StockOnHand > rule.ReorderThreshold {
				continue
			}
			orders = append(orders, e.order(len(orders), pair, rule, snap))
			break
		}
	}
	return orders
}

func (e *ReplenishmentEngine) order(n int, pair record.ItemLocation, rule record.Rule, snap record.Snapshot) record.Order {
	src := e.src.Split("replenishment", pair.Item, pair.Location)

	expected := snap.SnapshotTime.AddDate(0, 0, rule.LeadTimeDays)
	o := record.Order{
		ID:              OrderID(n),
		Item:            pair.Item,
		Location:        pair.Location,
		OrderDate:       snap.SnapshotTime,
		ExpectedArrival: expected,
		ActualArrival:   expected,
		Status:          record.OrderReceived,
	}
	if delay := rule.Scenario.Profile().Delay; delay != nil {
		o.ActualArrival = expected.AddDate(0, 0, src.IntRange(delay.Extra.Min, delay.Extra.Max))
		o.Status = record.OrderDelayed
		o.DelayReason = delay.Reason
	}
	o.Quantity = src.IntRange(minOrderQuantity, maxOrderQuantity)
	return o
}
