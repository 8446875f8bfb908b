package engine

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/rng"
)

const (
	minStartingStock = 300
	maxStartingStock = 500

	// FallbackDemand depletes a pair on a day with no ground truth.
	FallbackDemand = 15

	// Snapshots after staleAfterDay may be flagged stale.
	staleAfterDay    = 60
	staleProbability = 0.10
)

// stockLedger is the current stock of every pair, indexed like the
// catalog. Each index is written by exactly one worker.
type stockLedger struct {
	levels []int
}

func newStockLedger(pairs int) *stockLedger {
	return &stockLedger{levels: make([]int, pairs)}
}

func (l *stockLedger) open(i, stock int) {
	l.levels[i] = stock
}

// deplete subtracts demand from pair i, clamping at zero.
func (l *stockLedger) deplete(i, demand int) int {
	l.levels[i] = max(0, l.levels[i]-demand)
	return l.levels[i]
}

// SnapshotSeries holds the chronological snapshots of each pair, indexed
// like the catalog.
type SnapshotSeries [][]record.Snapshot

// Flatten returns every snapshot day-major, catalog order within a day.
func (s SnapshotSeries) Flatten() []record.Snapshot {
	if len(s) == 0 {
		return nil
	}
	days := len(s[0])
	out := make([]record.Snapshot, 0, len(s)*days)
	for d := 0; d < days; d++ {
		for _, pair := range s {
			out = append(out, pair[d])
		}
	}
	return out
}

// InventorySimulator walks the horizon for every pair.
//
// Days are strictly sequential within a pair. Pairs are independent and run
// on a bounded worker pool; each pair draws from its own stream, so the
// result does not depend on scheduling.
type InventorySimulator struct {
	src       *rng.Source
	cfg       Config
	pairs     []record.ItemLocation
	demand    DemandTable
	overrides Overrides
	logger    zerolog.Logger
}

// NewInventorySimulator creates a simulator over pairs.
func NewInventorySimulator(src *rng.Source, cfg Config, pairs []record.ItemLocation, demand DemandTable, overrides Overrides, logger zerolog.Logger) *InventorySimulator {
	return &InventorySimulator{
		src:       src,
		cfg:       cfg,
		pairs:     pairs,
		demand:    demand,
		overrides: overrides,
		logger:    logger,
	}
}

// Run simulates every pair and returns the snapshot series.
func (s *InventorySimulator) Run(ctx context.Context) (SnapshotSeries, error) {
	ledger := newStockLedger(len(s.pairs))
	series := make(SnapshotSeries, len(s.pairs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.workers())
	for i, pair := range s.pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			series[i] = s.walk(i, pair, ledger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return series, nil
}

func (s *InventorySimulator) walk(i int, pair record.ItemLocation, ledger *stockLedger) []record.Snapshot {
	src := s.src.Split("inventory", pair.Item, pair.Location)

	start := src.IntRange(minStartingStock, maxStartingStock)
	if v, ok := s.overrides.StartingStock[pair]; ok {
		start = v
	}
	ledger.open(i, start)

	out := make([]record.Snapshot, s.cfg.Days)
	for d := range out {
		demand, ok := s.demand.Lookup(pair.Item, d)
		if !ok {
			demand = FallbackDemand
			s.logger.Warn().
				Str("item", pair.Item).
				Str("location", pair.Location).
				Int("day", d).
				Int("fallback", FallbackDemand).
				Msg("missing ground-truth demand")
		}

		out[d] = record.Snapshot{
			Item:         pair.Item,
			Location:     pair.Location,
			StockOnHand:  ledger.deplete(i, demand),
			SnapshotTime: s.cfg.day(d),
			Stale:        d > staleAfterDay && src.Chance(staleProbability),
		}
	}
	return out
}
