package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/rng"
	"github.com/roach88/retrace/internal/scenario"
)

// Generator runs the pipeline for one configuration.
//
// A Generator holds no state between runs: Run may be called repeatedly
// and returns an equal dataset each time, apart from run id and analysis
// timestamps.
type Generator struct {
	cfg       Config
	catalog   *Catalog
	dist      *scenario.Distribution
	overrides Overrides
	clock     Clock
	runIDs    RunIDGenerator
	logger    zerolog.Logger
}

// Option allows configuration of generator collaborators.
type Option func(*Generator)

// WithClock sets the clock that stamps analysis timestamps.
func WithClock(c Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithRunIDGenerator sets the run id source.
func WithRunIDGenerator(r RunIDGenerator) Option {
	return func(g *Generator) { g.runIDs = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithOverrides pins drawn values.
func WithOverrides(o Overrides) Option {
	return func(g *Generator) { g.overrides = o }
}

// New validates cfg and creates a generator.
//
// Returns a *ConfigError (matching ErrInvalidConfig) when the configuration
// or the overrides are invalid.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Start = cfg.startDay()
	dist, err := scenario.NewDistribution(cfg.weights())
	if err != nil {
		return nil, &ConfigError{Field: "weights", Message: "bad scenario distribution", Err: err}
	}
	catalog, err := NewCatalog(cfg.Items, cfg.Locations)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:     cfg,
		catalog: catalog,
		dist:    dist,
		clock:   SystemClock{},
		runIDs:  UUIDv7Generator{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.overrides.validate(catalog); err != nil {
		return nil, err
	}
	return g, nil
}

// Config returns the validated configuration.
func (g *Generator) Config() Config { return g.cfg }

// Catalog returns the simulation universe.
func (g *Generator) Catalog() *Catalog { return g.catalog }

// Run generates one dataset.
//
// Stages run in order: scenario assignment, rules, forecasts, inventory,
// replenishment, stockout detection. Only the inventory stage fans out.
// The returned dataset is never modified afterwards.
func (g *Generator) Run(ctx context.Context) (*record.Dataset, error) {
	root := rng.New(g.cfg.Seed)
	runID := g.runIDs.Generate()
	log := g.logger.With().Str("run_id", runID).Int64("seed", g.cfg.Seed).Logger()

	log.Info().
		Int("items", g.cfg.Items).
		Int("locations", g.cfg.Locations).
		Int("days", g.cfg.Days).
		Msg("generation started")

	assigner := scenario.NewAssigner(g.dist, root.Split("scenario"), g.overrides.Scenarios)
	rules := NewRuleGenerator(root, g.cfg.Start, g.overrides)
	forecasts := NewForecastGenerator(root, g.cfg, g.overrides)

	items := g.catalog.Items()
	ds := &record.Dataset{
		RunID:     runID,
		Seed:      g.cfg.Seed,
		Start:     g.cfg.Start,
		Days:      g.cfg.Days,
		Catalog:   g.catalog.Pairs(),
		Scenarios: make(map[string]scenario.Kind, len(items)),
		Rules:     make([]record.Rule, 0, len(items)),
		Forecasts: make([]record.Forecast, 0, len(items)*g.cfg.Days),
	}

	ruleIndex := make(map[string]record.Rule, len(items))
	byItem := make(map[string][]record.Forecast, len(items))
	for _, item := range items {
		kind := assigner.Assign(item)
		ds.Scenarios[item] = kind

		rule := rules.Generate(item, kind)
		ds.Rules = append(ds.Rules, rule)
		ruleIndex[item] = rule

		series := forecasts.Generate(item, kind)
		byItem[item] = series
		ds.Forecasts = append(ds.Forecasts, series...)
	}
	log.Debug().Int("rules", len(ds.Rules)).Int("forecasts", len(ds.Forecasts)).Msg("rules and forecasts drawn")

	sim := NewInventorySimulator(root, g.cfg, ds.Catalog, demandTable(byItem), g.overrides, log)
	snapshots, err := sim.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulate inventory: %w", err)
	}
	ds.Snapshots = snapshots.Flatten()

	ds.Orders = NewReplenishmentEngine(root, ruleIndex).Generate(ds.Catalog, snapshots)
	ds.Stockouts = NewStockoutDetector(root, g.clock, ds.Scenarios).Detect(ds.Catalog, snapshots, ds.Orders)

	log.Info().
		Int("snapshots", len(ds.Snapshots)).
		Int("orders", len(ds.Orders)).
		Int("stockouts", len(ds.Stockouts)).
		Msg("generation finished")

	return ds, nil
}
