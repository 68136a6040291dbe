package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/tradefuse/market"
)

// ATRFunc calculates the Average True Range with Wilder smoothing.
func ATRFunc(candles []market.Candle, period int) (float64, error) {
	if err := need(len(candles), period, period+1); err != nil {
		return 0, err
	}
	a := NewATR(period)
	for _, c := range candles {
		a.Update(c)
	}
	return a.Value(), nil
}

// ATR is a streaming Average True Range. The first candle only seeds the
// previous close.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      market.Candle
	hasPrev   bool
}

func NewATR(period int) *ATR { return &ATR{period: period} }

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup is period+1: a true range needs the previous candle.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Reset() {
	a.atr, a.count, a.warmupSum, a.hasPrev = 0, 0, 0, false
}

func (a *ATR) Update(c market.Candle) {
	if !a.hasPrev {
		a.prev, a.hasPrev = c, true
		return
	}
	tr := trueRange(c, a.prev)
	a.prev = c
	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

func trueRange(current, previous market.Candle) float64 {
	return math.Max(current.High-current.Low,
		math.Max(math.Abs(current.High-previous.Close), math.Abs(current.Low-previous.Close)))
}
