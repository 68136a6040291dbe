package indicators

import "math"

var nan = math.NaN()

// PeriodsPerYear for common bar sizes, used to annualize realized vol.
const (
	DailyPeriods  = 252
	HourlyPeriods = 252 * 24
)

// LogReturns returns ln(p[t]/p[t-1]); the first element and any step with a
// non-positive price are NaN.
func LogReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		out[i] = nan
		if i == 0 || !(prices[i] > 0) || !(prices[i-1] > 0) {
			continue
		}
		out[i] = math.Log(prices[i] / prices[i-1])
	}
	return out
}

// RealizedVol is the rolling sample standard deviation of log returns over
// window bars, annualized by sqrt(periodsPerYear). A bar whose window holds
// fewer than window-1 finite returns is NaN.
func RealizedVol(prices []float64, window, periodsPerYear int) []float64 {
	rets := LogReturns(prices)
	out := make([]float64, len(prices))
	ann := math.Sqrt(float64(periodsPerYear))
	for t := range out {
		out[t] = nan
		if window < 2 || t+1 < window {
			continue
		}
		var sum, sq float64
		n := 0
		for _, r := range rets[t+1-window : t+1] {
			if math.IsNaN(r) {
				continue
			}
			sum += r
			sq += r * r
			n++
		}
		if n < window-1 || n < 2 {
			continue
		}
		mean := sum / float64(n)
		v := (sq - float64(n)*mean*mean) / float64(n-1)
		if v < 0 {
			v = 0
		}
		out[t] = math.Sqrt(v) * ann
	}
	return out
}
