package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/scenario"
)

// SampleStart is the simulation start of SampleDataset.
var SampleStart = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

// SampleAnalyzedAt is the analysis timestamp of every SampleDataset stockout.
var SampleAnalyzedAt = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

// SampleDataset returns a small, hand-built, internally consistent dataset:
// one SUPPLIER_DELAY item, two warehouses, three days, demand 150 per day.
//
//	WH_00: 400 → 250, 100, 0   order on day 1 (100 ≤ 160), stockout day 2
//	WH_01: 300 → 150,   0, 0   order on day 0 (150 ≤ 160), stockout day 1
//
// Each call returns a fresh copy that tests may mutate.
func SampleDataset() *record.Dataset {
	day := func(n int) time.Time { return SampleStart.AddDate(0, 0, n) }
	dec := decimal.RequireFromString

	const item = "ITEM_0000"
	ds := &record.Dataset{
		RunID: "test-run-default",
		Seed:  42,
		Start: SampleStart,
		Days:  3,
		Catalog: []record.ItemLocation{
			{Item: item, Location: "WH_00"},
			{Item: item, Location: "WH_01"},
		},
		Scenarios: map[string]scenario.Kind{item: scenario.SupplierDelay},
		Rules: []record.Rule{{
			Item:             item,
			SafetyStock:      60,
			LeadTimeDays:     5,
			ReorderThreshold: 160,
			LastUpdated:      day(-61),
			Owner:            "Alice",
			Scenario:         scenario.SupplierDelay,
		}},
	}

	confidences := []string{"0.8", "0.9", "0.85"}
	for d := 0; d < 3; d++ {
		ds.Forecasts = append(ds.Forecasts, record.Forecast{
			Item:         item,
			Date:         day(d),
			Demand:       150,
			GeneratedAt:  day(d - 1),
			Type:         record.ForecastBaseline,
			Confidence:   dec(confidences[d]),
			ActualDemand: 150,
		})
	}

	stock := [][2]int{{250, 150}, {100, 0}, {0, 0}}
	for d, levels := range stock {
		for w, loc := range []string{"WH_00", "WH_01"} {
			ds.Snapshots = append(ds.Snapshots, record.Snapshot{
				Item:         item,
				Location:     loc,
				StockOnHand:  levels[w],
				SnapshotTime: day(d),
			})
		}
	}

	ds.Orders = []record.Order{
		{
			ID:              "PO_000000",
			Item:            item,
			Location:        "WH_00",
			OrderDate:       day(1),
			ExpectedArrival: day(6),
			ActualArrival:   day(13),
			Quantity:        150,
			Status:          record.OrderDelayed,
			DelayReason:     "SUPPLIER_DELAY",
		},
		{
			ID:              "PO_000001",
			Item:            item,
			Location:        "WH_01",
			OrderDate:       day(0),
			ExpectedArrival: day(5),
			ActualArrival:   day(15),
			Quantity:        120,
			Status:          record.OrderDelayed,
			DelayReason:     "SUPPLIER_DELAY",
		},
	}

	ds.Stockouts = []record.StockoutEvent{
		{
			Item:             item,
			Location:         "WH_00",
			StockoutDate:     day(2),
			ReorderTriggered: true,
			Category:         record.ExecutionFailure,
			RootCause:        "SUPPLIER_DELAY",
			Confidence:       dec("0.8123"),
			AnalyzedAt:       SampleAnalyzedAt,
		},
		{
			Item:             item,
			Location:         "WH_01",
			StockoutDate:     day(1),
			ReorderTriggered: true,
			Category:         record.ExecutionFailure,
			RootCause:        "SUPPLIER_DELAY",
			Confidence:       dec("0.9"),
			AnalyzedAt:       SampleAnalyzedAt,
		},
	}

	return ds
}
