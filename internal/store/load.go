package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/retrace/internal/record"
)

// LoadDataset reads a stored run back into a dataset.
//
// Only persisted fields are restored: rule scenarios, forecast ground
// truth and order locations stay empty, and Catalog and Scenarios are nil.
// Rows come back in insertion order, so record.Fingerprint of the result
// equals the fingerprint stored for the run unless rows were altered.
func (s *Store) LoadDataset(ctx context.Context, runID string) (*record.Dataset, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	ds := &record.Dataset{
		RunID: run.ID,
		Seed:  run.Seed,
		Start: run.Start,
		Days:  run.Days,
	}

	args := []any{runID}
	if ds.Rules, err = queryAll(ctx, s.db, `
		SELECT item_id, safety_stock, lead_time_days, reorder_threshold, last_updated, rule_owner
		FROM reorder_rules WHERE run_id = ? ORDER BY rowid`, args, scanRule); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	if ds.Forecasts, err = queryAll(ctx, s.db, `
		SELECT item_id, forecast_date, daily_demand, generated_at, forecast_type, forecast_confidence
		FROM demand_forecast WHERE run_id = ? ORDER BY rowid`, args, scanForecast); err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}
	if ds.Snapshots, err = queryAll(ctx, s.db, `
		SELECT item_id, warehouse_id, stock_on_hand, snapshot_time, is_snapshot_stale
		FROM inventory_snapshot WHERE run_id = ? ORDER BY rowid`, args, scanSnapshot); err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	if ds.Orders, err = queryAll(ctx, s.db, `
		SELECT order_id, item_id, order_date, expected_arrival_date, actual_arrival_date, quantity, status, delay_reason
		FROM purchase_orders WHERE run_id = ? ORDER BY rowid`, args, scanOrder); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if ds.Stockouts, err = queryAll(ctx, s.db, `
		SELECT item_id, warehouse_id, stockout_date, reorder_triggered, failure_category,
		       root_cause, analysis_confidence, analyzed_at
		FROM stockout_events WHERE run_id = ? ORDER BY rowid`, args, scanStockout); err != nil {
		return nil, fmt.Errorf("load stockouts: %w", err)
	}
	return ds, nil
}

func scanRule(rows *sql.Rows) (record.Rule, error) {
	var r record.Rule
	var updated string
	if err := rows.Scan(&r.Item, &r.SafetyStock, &r.LeadTimeDays, &r.ReorderThreshold, &updated, &r.Owner); err != nil {
		return r, fmt.Errorf("scan rule: %w", err)
	}

	var p valueParser
	r.LastUpdated = p.time(updated)
	if p.err != nil {
		return r, fmt.Errorf("scan rule: %w", p.err)
	}
	return r, nil
}

func scanForecast(rows *sql.Rows) (record.Forecast, error) {
	var f record.Forecast
	var date, generated, kind, conf string
	if err := rows.Scan(&f.Item, &date, &f.Demand, &generated, &kind, &conf); err != nil {
		return f, fmt.Errorf("scan forecast: %w", err)
	}

	var p valueParser
	f.Date = p.time(date)
	f.GeneratedAt = p.time(generated)
	f.Type = record.ForecastType(kind)
	f.Confidence = p.decimal(conf)
	if p.err != nil {
		return f, fmt.Errorf("scan forecast: %w", p.err)
	}
	return f, nil
}

func scanSnapshot(rows *sql.Rows) (record.Snapshot, error) {
	var sn record.Snapshot
	var at string
	if err := rows.Scan(&sn.Item, &sn.Location, &sn.StockOnHand, &at, &sn.Stale); err != nil {
		return sn, fmt.Errorf("scan snapshot: %w", err)
	}

	var p valueParser
	sn.SnapshotTime = p.time(at)
	if p.err != nil {
		return sn, fmt.Errorf("scan snapshot: %w", p.err)
	}
	return sn, nil
}

func scanOrder(rows *sql.Rows) (record.Order, error) {
	var o record.Order
	var ordered, expected, actual, status string
	var reason sql.NullString
	if err := rows.Scan(&o.ID, &o.Item, &ordered, &expected, &actual, &o.Quantity, &status, &reason); err != nil {
		return o, fmt.Errorf("scan order: %w", err)
	}

	var p valueParser
	o.OrderDate = p.time(ordered)
	o.ExpectedArrival = p.time(expected)
	o.ActualArrival = p.time(actual)
	o.Status = record.OrderStatus(status)
	o.DelayReason = reason.String
	if p.err != nil {
		return o, fmt.Errorf("scan order: %w", p.err)
	}
	return o, nil
}
