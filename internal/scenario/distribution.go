package scenario

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/rng"
)

// ErrWeightSum is returned when the weights do not add up to exactly 1.
var ErrWeightSum = errors.New("scenario weights must sum to 1")

// DefaultWeights returns the fixed categorical distribution.
func DefaultWeights() map[Kind]decimal.Decimal {
	return map[Kind]decimal.Decimal{
		SupplierDelay:           decimal.RequireFromString("0.25"),
		ForecastUnderestimated:  decimal.RequireFromString("0.20"),
		ThresholdTooLow:         decimal.RequireFromString("0.15"),
		SafetyStockInsufficient: decimal.RequireFromString("0.15"),
		StaleForecast:           decimal.RequireFromString("0.10"),
		LeadTimeWrong:           decimal.RequireFromString("0.10"),
		NoFault:                 decimal.RequireFromString("0.05"),
	}
}

// Distribution is a validated categorical distribution over Kinds.
type Distribution struct {
	weights [numKinds]decimal.Decimal
	cum     [numKinds]float64
}

// NewDistribution validates weights and prepares the cumulative table.
// Missing kinds get weight zero. The sum is checked in decimal arithmetic
// so 0.1-style weights do not drift.
func NewDistribution(weights map[Kind]decimal.Decimal) (*Distribution, error) {
	d := &Distribution{}
	for k, w := range weights {
		if k < 0 || k >= numKinds {
			return nil, fmt.Errorf("invalid scenario kind %d", int(k))
		}
		if w.IsNegative() {
			return nil, fmt.Errorf("weight for %s is negative: %s", k, w)
		}
		d.weights[k] = w
	}
	if sum := d.Sum(); !sum.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", ErrWeightSum, sum)
	}

	running := decimal.Zero
	for k := range d.weights {
		running = running.Add(d.weights[k])
		d.cum[k] = running.InexactFloat64()
	}
	return d, nil
}

// Weight returns the configured weight of k.
func (d *Distribution) Weight(k Kind) decimal.Decimal {
	return d.weights[k]
}

// Sum returns the total weight, which is always exactly 1.
func (d *Distribution) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, w := range d.weights {
		sum = sum.Add(w)
	}
	return sum
}

// Draw samples one Kind.
func (d *Distribution) Draw(src *rng.Source) Kind {
	u := src.Float64()
	last := NoFault
	for k := range d.cum {
		if d.weights[k].IsZero() {
			continue
		}
		last = Kind(k)
		if u < d.cum[k] {
			return Kind(k)
		}
	}
	return last
}
