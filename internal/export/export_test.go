package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
	"github.com/roach88/retrace/internal/testutil"
)

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestWriteCSV_Golden(t *testing.T) {
	g := newGolden(t)
	ds := testutil.SampleDataset()

	for _, stream := range record.Streams {
		t.Run(stream.Table(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, ds, stream))
			g.Assert(t, stream.Table(), buf.Bytes())
		})
	}
}

func TestWriteCSV_NullDelayReasonIsEmpty(t *testing.T) {
	ds := testutil.SampleDataset()
	ds.Orders = ds.Orders[:1]
	ds.Orders[0].Status = record.OrderReceived
	ds.Orders[0].DelayReason = ""
	ds.Orders[0].ActualArrival = ds.Orders[0].ExpectedArrival

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds, record.StreamOrders))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Equal(t,
		"PO_000000,ITEM_0000,2024-10-02 00:00:00,2024-10-07 00:00:00,2024-10-07 00:00:00,150,RECEIVED,",
		string(lines[1]))
}

func TestWriteCSV_EmptyStreamHasHeader(t *testing.T) {
	ds := testutil.SampleDataset()
	ds.Stockouts = nil

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds, record.StreamStockouts))
	assert.Equal(t,
		"item_id,warehouse_id,stockout_date,reorder_triggered,failure_category,root_cause,analysis_confidence,analyzed_at\n",
		buf.String())
}

func TestCSVWriter_WritesEveryStream(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := CSVWriter{Dir: dir}

	require.NoError(t, w.Write(context.Background(), testutil.SampleDataset()))

	for _, stream := range record.Streams {
		got, err := os.ReadFile(w.Path(stream))
		require.NoError(t, err, stream.FileName())

		want, err := os.ReadFile(filepath.Join("testdata", "golden", stream.Table()+".golden"))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), stream.FileName())
	}
}

func TestCSVWriter_RequiresDir(t *testing.T) {
	err := CSVWriter{}.Write(context.Background(), testutil.SampleDataset())
	assert.Error(t, err)
}

func TestCSVWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := CSVWriter{Dir: t.TempDir()}.Write(ctx, testutil.SampleDataset())
	assert.ErrorIs(t, err, context.Canceled)
}

type failingSink struct{ err error }

func (f failingSink) Name() string { return "broken" }

func (f failingSink) Write(context.Context, *record.Dataset) error { return f.err }

func TestWriteAll_StoreAndCSV(t *testing.T) {
	ctx := context.Background()
	ds := testutil.SampleDataset()

	s, err := store.Open(filepath.Join(t.TempDir(), "retrace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fp, err := record.Fingerprint(ds)
	require.NoError(t, err)

	csvDir := t.TempDir()
	err = WriteAll(ctx, ds,
		CSVWriter{Dir: csvDir},
		StoreSink{Store: s, Meta: store.RunMeta{
			Profile:     []byte(`{"seed":42}`),
			Fingerprint: fp,
			CreatedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		}},
	)
	require.NoError(t, err)

	counts, err := s.Counts(ctx, ds.RunID)
	require.NoError(t, err)
	for _, stream := range record.Streams {
		assert.Equal(t, ds.Len(stream), counts[stream], stream.Table())
		assert.FileExists(t, filepath.Join(csvDir, stream.FileName()))
	}
}

func TestWriteAll_WrapsSinkError(t *testing.T) {
	boom := errors.New("disk full")

	err := WriteAll(context.Background(), testutil.SampleDataset(),
		CSVWriter{Dir: t.TempDir()},
		failingSink{err: boom},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "broken sink: disk full", err.Error())
}

func TestWriteAll_NoSinks(t *testing.T) {
	assert.NoError(t, WriteAll(context.Background(), testutil.SampleDataset()))
}

func TestCopyRows_PrefixRunID(t *testing.T) {
	ds := testutil.SampleDataset()
	ds.RunID = "run-7"

	assert.Equal(t,
		[]string{"run_id", "item_id", "warehouse_id", "stockout_date", "reorder_triggered", "failure_category", "root_cause", "analysis_confidence", "analyzed_at"},
		copyColumns(record.StreamStockouts))

	rows := copyRows(ds, record.StreamStockouts)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row, len(copyColumns(record.StreamStockouts)))
		assert.Equal(t, "run-7", row[0])
	}
	assert.True(t, decimal.RequireFromString("0.8123").Equal(rows[0][7].(decimal.Decimal)))
	assert.Equal(t, true, rows[0][4])
}

func TestCopyRows_NullDelayReason(t *testing.T) {
	ds := testutil.SampleDataset()
	ds.Orders[1].DelayReason = ""

	rows := copyRows(ds, record.StreamOrders)
	assert.Equal(t, "SUPPLIER_DELAY", rows[0][8])
	assert.Nil(t, rows[1][8])
}

// TestPostgresWriter_Integration needs a scratch database:
//
//	RETRACE_TEST_POSTGRES_DSN=postgres://localhost/retrace_test go test ./internal/export
func TestPostgresWriter_Integration(t *testing.T) {
	dsn := os.Getenv("RETRACE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RETRACE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ds := testutil.SampleDataset()
	ds.RunID = "it-" + time.Now().UTC().Format("20060102150405.000000000")

	w := NewPostgresWriter(pool)
	assert.Equal(t, "postgres", w.Name())
	require.NoError(t, w.Write(ctx, ds))

	var n int
	err = pool.QueryRow(ctx, `SELECT count(*) FROM stockout_events WHERE run_id = $1`, ds.RunID).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var conf decimal.Decimal
	err = pool.QueryRow(ctx,
		`SELECT analysis_confidence FROM stockout_events WHERE run_id = $1 AND warehouse_id = 'WH_00'`,
		ds.RunID).Scan(&conf)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.8123").Equal(conf))

	// Same run id twice violates the primary key and leaves nothing behind.
	assert.Error(t, w.Write(ctx, ds))
}

func TestNewPool_BadDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz", 1)
	assert.Error(t, err)
}
