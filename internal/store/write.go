package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/record"
)

// RunMeta is the run metadata stored next to a dataset.
type RunMeta struct {
	// Profile is the JSON form of the profile that produced the dataset.
	Profile []byte

	// Fingerprint is the dataset fingerprint.
	Fingerprint string

	// CreatedAt is when the run was written.
	CreatedAt time.Time
}

// WriteDataset stores ds and its run row in one transaction.
//
// Returns an error if the run id already exists; runs are append-only.
func (s *Store) WriteDataset(ctx context.Context, ds *record.Dataset, meta RunMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write dataset: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seed, items, locations, days, start_date, profile, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ds.RunID,
		ds.Seed,
		countItems(ds),
		countLocations(ds),
		ds.Days,
		ds.Start.Format(record.TimeLayout),
		string(meta.Profile),
		meta.Fingerprint,
		meta.CreatedAt.UTC().Format(record.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("write dataset: insert run %s: %w", ds.RunID, err)
	}

	for _, stream := range record.Streams {
		if err := writeStream(ctx, tx, ds, stream); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write dataset: commit: %w", err)
	}
	return nil
}

func writeStream(ctx context.Context, tx *sql.Tx, ds *record.Dataset, stream record.Stream) error {
	cols := append([]string{"run_id"}, stream.Columns()...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		stream.Table(), strings.Join(cols, ", "), placeholders,
	))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", stream.Table(), err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	args[0] = ds.RunID
	for i, row := range ds.Rows(stream) {
		for j, v := range row {
			args[j+1] = sqlValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", stream.Table(), i, err)
		}
	}
	return nil
}

// sqlValue maps a row value to its column encoding.
func sqlValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(record.TimeLayout)
	case decimal.Decimal:
		return x.String()
	default:
		return v
	}
}

func countItems(ds *record.Dataset) int {
	seen := make(map[string]struct{})
	for _, p := range ds.Catalog {
		seen[p.Item] = struct{}{}
	}
	return len(seen)
}

func countLocations(ds *record.Dataset) int {
	seen := make(map[string]struct{})
	for _, p := range ds.Catalog {
		seen[p.Location] = struct{}{}
	}
	return len(seen)
}
