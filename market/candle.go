// Package market holds the price data sleeves read: candles, per-symbol
// series and the point-in-time snapshot handed to a pipeline run.
package market

import (
	"math"
	"time"
)

// Candle is one OHLC bar, stamped with its open time.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Valid reports whether the bar has a usable, positive close.
func (c Candle) Valid() bool {
	return c.Close > 0 && !math.IsInf(c.Close, 0) && !c.Time.IsZero()
}
