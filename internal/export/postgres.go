package export

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/retrace/internal/record"
)

//go:embed postgres.sql
var postgresSchema string

// NewPool creates a Postgres pool with the shopspring decimal codec
// registered on every connection, and pings it.
func NewPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// NUMERIC confidences map to decimal.Decimal, never float64.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// PostgresWriter bulk-loads datasets into the warehouse tables with COPY.
// Tables are keyed by run id, like the SQLite store.
type PostgresWriter struct {
	pool *pgxpool.Pool
}

// NewPostgresWriter creates a writer over pool.
func NewPostgresWriter(pool *pgxpool.Pool) *PostgresWriter {
	return &PostgresWriter{pool: pool}
}

// Name implements Sink.
func (w *PostgresWriter) Name() string { return "postgres" }

// EnsureSchema creates the five tables if they are missing.
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure postgres schema: %w", err)
	}
	return nil
}

// Write implements Sink. All five streams are copied in one transaction.
func (w *PostgresWriter) Write(ctx context.Context, ds *record.Dataset) error {
	if err := w.EnsureSchema(ctx); err != nil {
		return err
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	for _, stream := range record.Streams {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{stream.Table()},
			copyColumns(stream),
			pgx.CopyFromRows(copyRows(ds, stream)),
		)
		if err != nil {
			return fmt.Errorf("copy %s: %w", stream.Table(), err)
		}
		if int(n) != ds.Len(stream) {
			return fmt.Errorf("copy %s: wrote %d of %d rows", stream.Table(), n, ds.Len(stream))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func copyColumns(stream record.Stream) []string {
	return append([]string{"run_id"}, stream.Columns()...)
}

// copyRows prefixes every row with the run id. Values keep their Go types;
// pgx encodes time.Time, bool and decimal.Decimal natively.
func copyRows(ds *record.Dataset, stream record.Stream) [][]any {
	rows := ds.Rows(stream)
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = append([]any{ds.RunID}, row...)
	}
	return out
}
