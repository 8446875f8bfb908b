package record

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the textual timestamp format of every emitted time column.
const TimeLayout = "2006-01-02 15:04:05"

// Stream identifies one of the five emitted streams.
type Stream int

const (
	StreamRules Stream = iota
	StreamForecasts
	StreamSnapshots
	StreamOrders
	StreamStockouts
)

// Streams lists every stream in pipeline order.
var Streams = []Stream{StreamRules, StreamForecasts, StreamSnapshots, StreamOrders, StreamStockouts}

type streamSchema struct {
	table   string
	columns []string
}

var schemas = map[Stream]streamSchema{
	StreamRules: {
		table:   "reorder_rules",
		columns: []string{"item_id", "safety_stock", "lead_time_days", "reorder_threshold", "last_updated", "rule_owner"},
	},
	StreamForecasts: {
		table:   "demand_forecast",
		columns: []string{"item_id", "forecast_date", "daily_demand", "generated_at", "forecast_type", "forecast_confidence"},
	},
	StreamSnapshots: {
		table:   "inventory_snapshot",
		columns: []string{"item_id", "warehouse_id", "stock_on_hand", "snapshot_time", "is_snapshot_stale"},
	},
	StreamOrders: {
		table:   "purchase_orders",
		columns: []string{"order_id", "item_id", "order_date", "expected_arrival_date", "actual_arrival_date", "quantity", "status", "delay_reason"},
	},
	StreamStockouts: {
		table:   "stockout_events",
		columns: []string{"item_id", "warehouse_id", "stockout_date", "reorder_triggered", "failure_category", "root_cause", "analysis_confidence", "analyzed_at"},
	},
}

// Table returns the table name of the stream.
func (s Stream) Table() string { return schemas[s].table }

// FileName returns the CSV file name of the stream.
func (s Stream) FileName() string { return schemas[s].table + ".csv" }

// Columns returns the emitted column names in order.
func (s Stream) Columns() []string {
	cols := schemas[s].columns
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

func (s Stream) String() string { return schemas[s].table }

// Len returns the number of records in the stream.
func (d *Dataset) Len(s Stream) int {
	switch s {
	case StreamRules:
		return len(d.Rules)
	case StreamForecasts:
		return len(d.Forecasts)
	case StreamSnapshots:
		return len(d.Snapshots)
	case StreamOrders:
		return len(d.Orders)
	case StreamStockouts:
		return len(d.Stockouts)
	}
	return 0
}

// Rows returns the emitted rows of a stream as typed values: string, int,
// bool, time.Time, decimal.Decimal or nil for a null column.
func (d *Dataset) Rows(s Stream) [][]any {
	rows := make([][]any, 0, d.Len(s))
	switch s {
	case StreamRules:
		for _, r := range d.Rules {
			rows = append(rows, []any{r.Item, r.SafetyStock, r.LeadTimeDays, r.ReorderThreshold, r.LastUpdated, r.Owner})
		}
	case StreamForecasts:
		for _, f := range d.Forecasts {
			rows = append(rows, []any{f.Item, f.Date, f.Demand, f.GeneratedAt, string(f.Type), f.Confidence})
		}
	case StreamSnapshots:
		for _, sn := range d.Snapshots {
			rows = append(rows, []any{sn.Item, sn.Location, sn.StockOnHand, sn.SnapshotTime, sn.Stale})
		}
	case StreamOrders:
		for _, o := range d.Orders {
			var reason any
			if o.DelayReason != "" {
				reason = o.DelayReason
			}
			rows = append(rows, []any{o.ID, o.Item, o.OrderDate, o.ExpectedArrival, o.ActualArrival, o.Quantity, string(o.Status), reason})
		}
	case StreamStockouts:
		for _, e := range d.Stockouts {
			rows = append(rows, []any{e.Item, e.Location, e.StockoutDate, e.ReorderTriggered, string(e.Category), e.RootCause, e.Confidence, e.AnalyzedAt})
		}
	}
	return rows
}

// FormatValue renders a typed row value as text. Null renders as the empty
// string, booleans as True/False.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case time.Time:
		return val.Format(TimeLayout)
	case decimal.Decimal:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// ParseTime parses a TimeLayout timestamp in UTC.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}
