// Package scenario defines the injected failure scenarios.
//
// A scenario is a tagged variant: Kind is the tag, Profile carries the
// parameters each generator needs (rule distortion, forecast distortion,
// arrival delay, root cause label). Generators dispatch on the Profile
// fields rather than comparing labels, so the fault model lives in one
// table and every Kind must have an entry.
package scenario

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies one of the seven exclusive scenarios.
type Kind int

const (
	SupplierDelay Kind = iota
	ForecastUnderestimated
	ThresholdTooLow
	SafetyStockInsufficient
	StaleForecast
	LeadTimeWrong
	NoFault

	numKinds
)

// UnknownRootCause is recorded for stockouts that have no injected cause.
const UnknownRootCause = "UNKNOWN"

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int
	Max int
}

// RuleFault distorts the replenishment rule.
type RuleFault struct {
	// ThresholdMargin, when non-nil, replaces the baseline threshold with
	// safety stock + margin.
	ThresholdMargin *int

	// SafetyStock, when non-nil, replaces the baseline safety stock draw.
	// The threshold is then computed from the redrawn value.
	SafetyStock *IntRange
}

// ForecastFault distorts the published forecast.
type ForecastFault struct {
	// DemandFactor scales ground truth; the result is floored. Zero means
	// the forecast equals ground truth.
	DemandFactor decimal.Decimal

	// Confidence, when non-nil, fixes the confidence instead of drawing it.
	Confidence *decimal.Decimal

	// StaleDays, when positive, pins generated_at to that many days before
	// the simulation start regardless of the forecast date.
	StaleDays int
}

// DelayFault pushes the actual arrival past the expected arrival.
type DelayFault struct {
	Extra  IntRange
	Reason string
}

// Profile is the parameter set of one scenario.
type Profile struct {
	Kind      Kind
	Label     string
	Rule      RuleFault
	Forecast  ForecastFault
	Delay     *DelayFault
	RootCause string
}

// Distorted reports whether the forecast deviates from the healthy path.
// Healthy forecasts draw their confidence and forecast type.
func (f ForecastFault) Distorted() bool {
	return !f.DemandFactor.IsZero() || f.Confidence != nil || f.StaleDays > 0
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var profiles = [numKinds]Profile{
	SupplierDelay: {
		Kind:      SupplierDelay,
		Label:     "SUPPLIER_DELAY",
		Delay:     &DelayFault{Extra: IntRange{Min: 5, Max: 15}, Reason: "SUPPLIER_DELAY"},
		RootCause: "SUPPLIER_DELAY",
	},
	ForecastUnderestimated: {
		Kind:  ForecastUnderestimated,
		Label: "FORECAST_UNDERESTIMATED",
		Forecast: ForecastFault{
			DemandFactor: decimal.RequireFromString("0.7"),
			Confidence:   decPtr("0.6"),
		},
		RootCause: "FORECAST_UNDERESTIMATED",
	},
	ThresholdTooLow: {
		Kind:      ThresholdTooLow,
		Label:     "THRESHOLD_TOO_LOW",
		Rule:      RuleFault{ThresholdMargin: intPtr(10)},
		RootCause: "THRESHOLD_TOO_LOW",
	},
	SafetyStockInsufficient: {
		Kind:      SafetyStockInsufficient,
		Label:     "SAFETY_STOCK_INSUFFICIENT",
		Rule:      RuleFault{SafetyStock: &IntRange{Min: 10, Max: 30}},
		RootCause: "SAFETY_STOCK_INSUFFICIENT",
	},
	StaleForecast: {
		Kind:  StaleForecast,
		Label: "STALE_FORECAST",
		Forecast: ForecastFault{
			Confidence: decPtr("0.4"),
			StaleDays:  60,
		},
		RootCause: "STALE_FORECAST",
	},
	LeadTimeWrong: {
		Kind:      LeadTimeWrong,
		Label:     "LEAD_TIME_WRONG",
		Delay:     &DelayFault{Extra: IntRange{Min: 3, Max: 8}, Reason: "LEAD_TIME_MISCONFIGURED"},
		RootCause: "LEAD_TIME_WRONG",
	},
	NoFault: {
		Kind:      NoFault,
		Label:     "NO_FAILURE",
		RootCause: UnknownRootCause,
	},
}

// Profile returns the parameter set for k. It panics on an out-of-range
// Kind, which can only come from a programming error.
func (k Kind) Profile() Profile {
	if k < 0 || k >= numKinds {
		panic(fmt.Sprintf("scenario: invalid kind %d", int(k)))
	}
	return profiles[k]
}

// String returns the wire label.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return profiles[k].Label
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || k >= numKinds {
		return nil, fmt.Errorf("scenario: invalid kind %d", int(k))
	}
	return []byte(profiles[k].Label), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Parse resolves a wire label.
func Parse(label string) (Kind, error) {
	for _, p := range profiles {
		if p.Label == label {
			return p.Kind, nil
		}
	}
	return 0, fmt.Errorf("unknown scenario %q", label)
}

// All returns every Kind in declaration order.
func All() []Kind {
	kinds := make([]Kind, numKinds)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}
