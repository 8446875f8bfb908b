package engine

import (
	"runtime"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/scenario"
)

// Defaults reproduce the reference dataset: 50 items in 5 warehouses over
// 90 days starting 2024-10-01.
const (
	DefaultSeed      = 42
	DefaultItems     = 50
	DefaultLocations = 5
	DefaultDays      = 90
)

// DefaultStart is the first simulated day.
var DefaultStart = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

// Config controls one generation run.
type Config struct {
	Seed      int64
	Items     int
	Locations int
	Days      int
	Start     time.Time

	// Weights is the scenario distribution. Nil means scenario.DefaultWeights.
	Weights map[scenario.Kind]decimal.Decimal

	// Workers bounds the inventory fan-out. Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Seed:      DefaultSeed,
		Items:     DefaultItems,
		Locations: DefaultLocations,
		Days:      DefaultDays,
		Start:     DefaultStart,
		Weights:   scenario.DefaultWeights(),
	}
}

// Validate checks the configuration. It returns a *ConfigError.
func (c Config) Validate() error {
	if c.Items <= 0 {
		return newConfigError("items", "catalog needs at least one item, got %d", c.Items)
	}
	if c.Locations <= 0 {
		return newConfigError("locations", "catalog needs at least one location, got %d", c.Locations)
	}
	if c.Days <= 0 {
		return newConfigError("days", "horizon must be positive, got %d", c.Days)
	}
	if c.Start.IsZero() {
		return newConfigError("start", "start date is required")
	}
	if c.Workers < 0 {
		return newConfigError("workers", "must not be negative, got %d", c.Workers)
	}
	if _, err := scenario.NewDistribution(c.weights()); err != nil {
		return &ConfigError{Field: "weights", Message: "bad scenario distribution", Err: err}
	}
	return nil
}

func (c Config) weights() map[scenario.Kind]decimal.Decimal {
	if c.Weights == nil {
		return scenario.DefaultWeights()
	}
	return c.Weights
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// startDay returns the calendar date of Start at UTC midnight. Simulated
// days are UTC calendar days whatever zone Start was given in.
func (c Config) startDay() time.Time {
	y, m, d := c.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// day returns the date of a day offset.
func (c Config) day(offset int) time.Time {
	return c.Start.AddDate(0, 0, offset)
}
