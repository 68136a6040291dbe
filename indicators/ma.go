package indicators

import (
	"fmt"

	"github.com/rustyeddy/tradefuse/market"
)

// Values feeds candles through ind from a clean state and returns its value
// at every bar; bars before ind is ready are NaN. ind is left holding the
// state after the last candle.
func Values(ind Indicator, candles []market.Candle) []float64 {
	ind.Reset()
	out := make([]float64, len(candles))
	for i, c := range candles {
		ind.Update(c)
		out[i] = nan
		if ind.Ready() {
			out[i] = ind.Value()
		}
	}
	return out
}

// EMASeries returns the EMA of closes at every bar; bars before warmup are NaN.
func EMASeries(closes []float64, period int) []float64 {
	return Values(NewEMA(period), closeCandles(closes))
}

// SMASeries returns the simple moving average of closes at every bar.
func SMASeries(closes []float64, period int) []float64 {
	return Values(NewMA(period), closeCandles(closes))
}

func closeCandles(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Close: c}
	}
	return out
}

func need(have, period, want int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if have < want {
		return fmt.Errorf("not enough candles: need %d, got %d", want, have)
	}
	return nil
}
