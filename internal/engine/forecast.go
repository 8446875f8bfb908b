package engine

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/rng"
	"github.com/roach88/retrace/internal/scenario"
)

const (
	minBaseDemand = 10
	maxBaseDemand = 30
	demandNoise   = 5
	minDemand     = 5

	minHealthyConfidence = 0.7
	maxHealthyConfidence = 0.95

	// One PROMO for every two BASELINE forecasts.
	forecastTypeChoices = 3

	// confidencePlaces is the precision of every emitted confidence.
	confidencePlaces = 4
)

// roundConfidence converts a drawn float to the emitted decimal.
func roundConfidence(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(confidencePlaces)
}

// DemandTable holds the ground-truth demand of every item by day offset.
type DemandTable struct {
	byItem map[string][]int
}

// Lookup returns the ground truth of item on day. ok is false when the
// table has no value.
func (t DemandTable) Lookup(item string, day int) (demand int, ok bool) {
	series, found := t.byItem[item]
	if !found || day < 0 || day >= len(series) {
		return 0, false
	}
	return series[day], true
}

// ForecastGenerator produces the daily forecast series of each item.
type ForecastGenerator struct {
	src       *rng.Source
	cfg       Config
	overrides Overrides
}

// NewForecastGenerator creates a forecast generator.
func NewForecastGenerator(src *rng.Source, cfg Config, overrides Overrides) *ForecastGenerator {
	return &ForecastGenerator{src: src, cfg: cfg, overrides: overrides}
}

// Generate returns one forecast per day for item. Each record carries the
// ground truth that drives depletion.
func (g *ForecastGenerator) Generate(item string, kind scenario.Kind) []record.Forecast {
	src := g.src.Split("forecast", item)
	fault := kind.Profile().Forecast

	base := src.IntRange(minBaseDemand, maxBaseDemand)
	pinned, isPinned := g.overrides.Demand[item]

	out := make([]record.Forecast, g.cfg.Days)
	for d := range out {
		truth := max(minDemand, base+src.IntRange(-demandNoise, demandNoise))
		if isPinned {
			truth = pinned
		}

		date := g.cfg.day(d)
		f := record.Forecast{
			Item:         item,
			Date:         date,
			Demand:       truth,
			GeneratedAt:  date.AddDate(0, 0, -1),
			Type:         record.ForecastBaseline,
			ActualDemand: truth,
		}

		if !fault.Distorted() {
			f.Confidence = roundConfidence(src.Uniform(minHealthyConfidence, maxHealthyConfidence))
			if src.Pick(forecastTypeChoices) == forecastTypeChoices-1 {
				f.Type = record.ForecastPromo
			}
			out[d] = f
			continue
		}

		if !fault.DemandFactor.IsZero() {
			f.Demand = int(decimal.NewFromInt(int64(truth)).Mul(fault.DemandFactor).Floor().IntPart())
		}
		if fault.Confidence != nil {
			f.Confidence = *fault.Confidence
		}
		if fault.StaleDays > 0 {
			f.GeneratedAt = g.cfg.Start.AddDate(0, 0, -fault.StaleDays)
		}
		out[d] = f
	}
	return out
}

// demandTable indexes the ground truth of a forecast set.
func demandTable(forecasts map[string][]record.Forecast) DemandTable {
	t := DemandTable{byItem: make(map[string][]int, len(forecasts))}
	for item, series := range forecasts {
		truth := make([]int, len(series))
		for i, f := range series {
			truth[i] = f.ActualDemand
		}
		t.byItem[item] = truth
	}
	return t
}
