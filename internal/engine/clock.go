package engine

import "time"

// Clock supplies wall-clock time for analysis timestamps.
//
// Simulated dates never come from a Clock; they are derived from the
// configured start date and the day offset. Only StockoutEvent.AnalyzedAt
// records when the attribution was computed.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC, truncated to whole seconds
// because the emitted timestamp format has no fractional part.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
