package market

import (
	"math"
	"sort"
	"time"
)

// Series is the bar history of one symbol, oldest first. Vol optionally
// carries an annualized realized-volatility value per bar.
type Series struct {
	Symbol  string
	Candles []Candle
	Vol     []float64
}

func (s Series) Len() int { return len(s.Candles) }

// Closes returns the close prices in bar order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent bar.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Usable reports whether the series can be sized against: its last bar has a
// valid close and at least one finite positive vol value is present.
func (s Series) Usable() bool {
	last, ok := s.Last()
	if !ok || !last.Valid() {
		return false
	}
	for _, v := range s.Vol {
		if v > 0 && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Snapshot is the market state a pipeline run sees.
type Snapshot struct {
	AsOf   time.Time
	Series map[string]Series
}

// Get returns the series for symbol.
func (s Snapshot) Get(symbol string) (Series, bool) {
	ser, ok := s.Series[symbol]
	return ser, ok
}

// Symbols lists the symbols in the snapshot in sorted order.
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.Series))
	for sym := range s.Series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
