package risk

import (
	"math"

	"github.com/rustyeddy/tradefuse/intent"
)

// SizingInputs feeds the volatility-targeting sizer. Prices and Vols are
// aligned by index; Vols are annualized realized volatilities.
type SizingInputs struct {
	Equity       float64
	TargetAnnVol float64
	Prices       []float64
	Vols         []float64

	// PerTradeRiskCap bounds the loss at the stop as a fraction of equity.
	// It only applies when StopDistance (in price units) is positive.
	PerTradeRiskCap float64
	StopDistance    float64
}

// TargetUnits returns unsigned target units per bar:
//
//	units[t] = (TargetAnnVol / vol[t]) * (Equity / price[t])
//
// Zero, negative and NaN vols are missing; they are forward filled and then
// back filled. Any bar that still can't be sized gets 0.
func TargetUnits(in SizingInputs) []float64 {
	n := len(in.Prices)
	units := make([]float64, n)
	if n == 0 || in.Equity <= 0 || in.TargetAnnVol <= 0 {
		return units
	}

	vols := fillVols(in.Vols, n)
	limit := math.Inf(1)
	if in.StopDistance > 0 && in.PerTradeRiskCap > 0 {
		limit = in.PerTradeRiskCap * in.Equity / in.StopDistance
	}

	for t := 0; t < n; t++ {
		p := in.Prices[t]
		if !(p > 0) || math.IsInf(p, 0) {
			continue
		}
		u := (in.TargetAnnVol / vols[t]) * (in.Equity / p)
		if math.IsNaN(u) || math.IsInf(u, 0) {
			continue
		}
		units[t] = math.Min(math.Abs(u), limit)
	}
	return units
}

func fillVols(vols []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
		if i < len(vols) && vols[i] > 0 && !math.IsInf(vols[i], 0) {
			out[i] = vols[i]
		}
	}
	last := math.NaN()
	for i := range out {
		if math.IsNaN(out[i]) {
			out[i] = last
		} else {
			last = out[i]
		}
	}
	next := math.NaN()
	for i := n - 1; i >= 0; i-- {
		if math.IsNaN(out[i]) {
			out[i] = next
		} else {
			next = out[i]
		}
	}
	return out
}

// SizeIntent sizes o from the last bar of in. Units are scaled by confidence,
// signed by side and clamped to the intent's notional cap at the last price.
// capped reports whether the notional cap bound the result.
func SizeIntent(o intent.OrderIntent, in SizingInputs) (sized intent.OrderIntent, capped bool) {
	if o.IsFlat() || len(in.Prices) == 0 {
		return o.WithUnits(0), false
	}
	units := TargetUnits(in)
	u := units[len(units)-1] * o.Confidence

	price := in.Prices[len(in.Prices)-1]
	if o.NotionalCap > 0 && price > 0 && u*price > o.NotionalCap {
		u = o.NotionalCap / price
		capped = true
	}
	return o.WithUnits(u * o.Side.Direction()), capped
}
