// Package export writes generated datasets to sinks: CSV files, the SQLite
// row store and a Postgres warehouse. Sinks only read the dataset, so
// WriteAll runs them concurrently without copying it.
package export

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
)

// Sink persists a whole dataset.
type Sink interface {
	Name() string
	Write(ctx context.Context, ds *record.Dataset) error
}

// WriteAll writes ds to every sink concurrently. The first failure cancels
// the context passed to the remaining sinks and is returned.
func WriteAll(ctx context.Context, ds *record.Dataset, sinks ...Sink) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range sinks {
		g.Go(func() error {
			if err := sink.Write(ctx, ds); err != nil {
				return fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// StoreSink writes a dataset and its run row to the SQLite store.
type StoreSink struct {
	Store *store.Store
	Meta  store.RunMeta
}

// Name implements Sink.
func (s StoreSink) Name() string { return "sqlite" }

// Write implements Sink.
func (s StoreSink) Write(ctx context.Context, ds *record.Dataset) error {
	return s.Store.WriteDataset(ctx, ds, s.Meta)
}
