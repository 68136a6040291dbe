package risk

import "math"

// Pip-risk sizing for FX instruments, used by the plan report.
//
// QuoteToAccount converts the quote currency into the account currency:
// EUR_USD in a USD account is 1.0, USD_JPY is 1/USDJPY.

type Inputs struct {
	Equity         float64
	RiskPct        float64
	EntryPrice     float64
	StopPrice      float64
	PipLocation    int
	QuoteToAccount float64
}

type Result struct {
	Units      float64
	StopPips   float64
	RiskAmount float64
}

// PipSize returns 10^loc, e.g. 0.0001 for loc -4.
func PipSize(loc int) float64 {
	return math.Pow(10, float64(loc))
}

// Calculate sizes a position so that hitting the stop loses RiskPct of
// equity. A zero stop distance or conversion rate yields zero units.
func Calculate(in Inputs) Result {
	pip := PipSize(in.PipLocation)
	res := Result{
		StopPips:   math.Abs(in.EntryPrice-in.StopPrice) / pip,
		RiskAmount: in.Equity * in.RiskPct,
	}
	perUnit := res.StopPips * pip * in.QuoteToAccount
	if perUnit <= 0 || res.RiskAmount <= 0 {
		return res
	}
	res.Units = math.Floor(res.RiskAmount / perUnit)
	return res
}

// PlannedRiskUSD is the account-currency loss if the stop is hit.
func PlannedRiskUSD(units, entry, stop, quoteToAccountRate float64) float64 {
	return math.Abs(units) * math.Abs(entry-stop) * quoteToAccountRate
}

// RR is the reward to risk ratio of a bracket, 0 when the stop sits on entry.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}

func RiskPct(plannedRiskUSD, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRiskUSD / equity
}
