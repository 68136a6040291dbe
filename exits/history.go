package exits

import (
	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
)

// PathsFromCandles cuts historical bars into excursion paths: every bar with
// a valid close opens a path over the following bars (at most maxBars) for
// side, or one long and one short path when side is flat. Excursions are
// measured in pips from the entry close. Entries without at least one
// following bar are skipped.
func PathsFromCandles(candles []market.Candle, pipSize float64, maxBars int, side intent.Side) []Path {
	if pipSize <= 0 || maxBars <= 0 {
		return nil
	}
	var out []Path
	for i := 0; i < len(candles)-1; i++ {
		entry := candles[i].Close
		if !(entry > 0) {
			continue
		}
		end := i + 1 + maxBars
		if end > len(candles) {
			end = len(candles)
		}
		long := make(Path, 0, end-i-1)
		short := make(Path, 0, end-i-1)
		for _, c := range candles[i+1 : end] {
			hi := (c.High - entry) / pipSize
			lo := (c.Low - entry) / pipSize
			cl := (c.Close - entry) / pipSize
			long = append(long, Bar{High: hi, Low: lo, Close: cl})
			short = append(short, Bar{High: -lo, Low: -hi, Close: -cl})
		}
		switch side {
		case intent.Long:
			out = append(out, long)
		case intent.Short:
			out = append(out, short)
		default:
			out = append(out, long, short)
		}
	}
	return out
}
