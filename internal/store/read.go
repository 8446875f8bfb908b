package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/record"
)

// ErrRunNotFound is returned when no run matches.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored generation run.
type Run struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"id"`
	Seed        int64     `json:"seed"`
	Items       int       `json:"items"`
	Locations   int       `json:"locations"`
	Days        int       `json:"days"`
	Start       time.Time `json:"start"`
	Profile     []byte    `json:"-"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

const runColumns = `seq, id, seed, items, locations, days, start_date, profile, fingerprint, created_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r              Run
		start, created string
		profile        string
	)
	if err := row.Scan(&r.Seq, &r.ID, &r.Seed, &r.Items, &r.Locations, &r.Days, &start, &profile, &r.Fingerprint, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if r.Start, err = record.ParseTime(start); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", r.ID, err)
	}
	if r.CreatedAt, err = record.ParseTime(created); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", r.ID, err)
	}
	r.Profile = []byte(profile)
	return r, nil
}

// LatestRun returns the most recently written run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT 1`)
	return scanRun(row)
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns every run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Counts returns the number of stored rows per stream for a run.
func (s *Store) Counts(ctx context.Context, runID string) (map[record.Stream]int, error) {
	counts := make(map[record.Stream]int, len(record.Streams))
	for _, stream := range record.Streams {
		var n int
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = ?", stream.Table()), runID,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", stream.Table(), err)
		}
		counts[stream] = n
	}
	return counts, nil
}

// Breakdown counts stockouts by root cause and by failure category.
type Breakdown struct {
	ByRootCause map[string]int `json:"by_root_cause"`
	ByCategory  map[string]int `json:"by_category"`
}

// StockoutBreakdown aggregates the stockouts of a run.
func (s *Store) StockoutBreakdown(ctx context.Context, runID string) (Breakdown, error) {
	b := Breakdown{ByRootCause: map[string]int{}, ByCategory: map[string]int{}}

	for column, into := range map[string]map[string]int{
		"root_cause":       b.ByRootCause,
		"failure_category": b.ByCategory,
	} {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT %[1]s, COUNT(*) FROM stockout_events
			WHERE run_id = ?
			GROUP BY %[1]s
			ORDER BY %[1]s COLLATE BINARY ASC
		`, column), runID)
		if err != nil {
			return Breakdown{}, fmt.Errorf("stockout breakdown by %s: %w", column, err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return Breakdown{}, fmt.Errorf("stockout breakdown by %s: %w", column, err)
			}
			into[key] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return Breakdown{}, fmt.Errorf("stockout breakdown by %s: %w", column, err)
		}
	}
	return b, nil
}

// EventFilter selects stockout events. Empty fields match everything; a
// Limit of zero means no limit.
type EventFilter struct {
	Category  string
	RootCause string
	Limit     int
}

// ListStockouts returns the stockout events of a run matching f, ordered
// by stockout date, item and warehouse.
func (s *Store) ListStockouts(ctx context.Context, runID string, f EventFilter) ([]record.StockoutEvent, error) {
	var (
		where = []string{"run_id = ?"}
		args  = []any{runID}
	)
	if f.Category != "" {
		where = append(where, "failure_category = ?")
		args = append(args, f.Category)
	}
	if f.RootCause != "" {
		where = append(where, "root_cause = ?")
		args = append(args, f.RootCause)
	}

	query := `
		SELECT item_id, warehouse_id, stockout_date, reorder_triggered, failure_category,
		       root_cause, analysis_confidence, analyzed_at
		FROM stockout_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY stockout_date ASC, item_id COLLATE BINARY ASC, warehouse_id COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return queryAll(ctx, s.db, query, args, scanStockout)
}

// queryAll runs query and scans every row with scan. It never returns a
// nil slice on success.
func queryAll[T any](ctx context.Context, db *sql.DB, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// valueParser decodes TEXT timestamps and decimals while scanning and
// keeps the first parse failure.
type valueParser struct {
	err error
}

func (p *valueParser) time(s string) time.Time {
	t, err := record.ParseTime(s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return t
}

func (p *valueParser) decimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d
}

func scanStockout(rows *sql.Rows) (record.StockoutEvent, error) {
	var e record.StockoutEvent
	var date, category, conf, analyzed string
	if err := rows.Scan(&e.Item, &e.Location, &date, &e.ReorderTriggered, &category, &e.RootCause, &conf, &analyzed); err != nil {
		return e, fmt.Errorf("scan stockout: %w", err)
	}

	var p valueParser
	e.StockoutDate = p.time(date)
	e.Category = record.FailureCategory(category)
	e.Confidence = p.decimal(conf)
	e.AnalyzedAt = p.time(analyzed)
	if p.err != nil {
		return e, fmt.Errorf("scan stockout: %w", p.err)
	}
	return e, nil
}
