// Package indicators provides technical analysis indicators over candles.
package indicators

import "github.com/rustyeddy/tradefuse/market"

// Indicator computes a single streaming value from candles.
// It is deterministic and safe to use in live, replay, and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	Ready() bool

	// Value returns the current value, or 0 before Ready.
	Value() float64
}
