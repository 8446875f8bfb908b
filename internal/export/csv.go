package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/retrace/internal/record"
)

// CSVWriter writes one CSV file per stream into Dir, named after the
// stream table (reorder_rules.csv, ...). Existing files are replaced.
type CSVWriter struct {
	Dir string
}

// Name implements Sink.
func (w CSVWriter) Name() string { return "csv" }

// Write implements Sink. The five files are written concurrently.
func (w CSVWriter) Write(ctx context.Context, ds *record.Dataset) error {
	if w.Dir == "" {
		return fmt.Errorf("CSV output requires an output directory")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, stream := range record.Streams {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return w.writeFile(ds, stream)
		})
	}
	return g.Wait()
}

// Path returns the file a stream is written to.
func (w CSVWriter) Path(stream record.Stream) string {
	return filepath.Join(w.Dir, stream.FileName())
}

func (w CSVWriter) writeFile(ds *record.Dataset, stream record.Stream) (err error) {
	file, err := os.Create(w.Path(stream))
	if err != nil {
		return fmt.Errorf("create %s: %w", stream.FileName(), err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", stream.FileName(), cerr)
		}
	}()

	if err := WriteCSV(file, ds, stream); err != nil {
		return fmt.Errorf("write %s: %w", stream.FileName(), err)
	}
	return nil
}

// WriteCSV encodes one stream with a header row.
func WriteCSV(out io.Writer, ds *record.Dataset, stream record.Stream) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(stream.Columns()); err != nil {
		return err
	}

	rows := ds.Rows(stream)
	fields := make([]string, len(stream.Columns()))
	for _, row := range rows {
		for i, v := range row {
			fields[i] = record.FormatValue(v)
		}
		if err := writer.Write(fields); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
