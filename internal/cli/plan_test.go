package cli

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradefuse/config"
	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
	"github.com/rustyeddy/tradefuse/pipeline"
)

func bracket(sym string, side intent.Side, units float64, sl, tp *float64) intent.OrderIntent {
	o := intent.OrderIntent{TS: barStart, Symbol: sym, Side: side, Entry: intent.Entry{Type: intent.Market}, Tag: "trend", Units: units}
	if sl != nil || tp != nil {
		o.Exit = &intent.Exit{SL: sl, TP: tp}
	}
	return o
}

func lastClose(sym string, c float64) market.Series {
	return market.Series{Symbol: sym, Candles: []market.Candle{{Time: barStart, Close: c}}}
}

func TestPlanRows(t *testing.T) {
	t.Parallel()

	snap := market.Snapshot{AsOf: barStart, Series: map[string]market.Series{
		"EUR_USD": lastClose("EUR_USD", 1.1),
		"USD_JPY": lastClose("USD_JPY", 150),
		"EUR_JPY": lastClose("EUR_JPY", 160),
	}}
	res := pipeline.Result{RunID: "01TEST", AsOf: barStart, Intents: []intent.OrderIntent{
		bracket("EUR_USD", intent.Long, 10000, intent.Float(1.095), intent.Float(1.11)),
		bracket("USD_JPY", intent.Short, -1000, intent.Float(151), intent.Float(148)),
		bracket("GBP_USD", intent.Long, 500, nil, nil),
		bracket("EUR_JPY", intent.Long, 500, intent.Float(159), nil),
		bracket("AUD_USD", intent.Flat, 0, nil, nil),
	}}
	acct := config.AccountConfig{Currency: "USD", Equity: 10000}

	rows := planRows(res, snap, acct, 0.01)
	require.Len(t, rows, 4)

	eur := rows[0]
	assert.Equal(t, "EUR_USD", eur.Symbol)
	assert.InDelta(t, 1.1, eur.Entry, 1e-12)
	assert.InDelta(t, 50, eur.StopPips, 1e-6)
	assert.InDelta(t, 50, eur.RiskUSD, 1e-6)
	assert.InDelta(t, 0.005, eur.RiskPct, 1e-9)
	assert.InDelta(t, 2, eur.RR, 1e-6)
	assert.InDelta(t, 100, eur.Budget, 1e-9)
	assert.InDelta(t, 20000, eur.BudgetFit, 1)
	assert.Empty(t, eur.Note)

	jpy := rows[1]
	assert.InDelta(t, 100, jpy.StopPips, 1e-6)
	assert.InDelta(t, 1000.0/150, jpy.RiskUSD, 1e-9)
	assert.InDelta(t, 2, jpy.RR, 1e-9)

	assert.Equal(t, "no stop", rows[2].Note)
	assert.Equal(t, "no USD conversion", rows[3].Note)
	assert.True(t, math.IsNaN(rows[3].TP))
}

func TestPlanRowsOverBudget(t *testing.T) {
	t.Parallel()

	snap := market.Snapshot{AsOf: barStart, Series: map[string]market.Series{"EUR_USD": lastClose("EUR_USD", 1.1)}}
	res := pipeline.Result{Intents: []intent.OrderIntent{
		bracket("EUR_USD", intent.Long, 30000, intent.Float(1.095), nil),
	}}
	rows := planRows(res, snap, config.AccountConfig{Currency: "USD", Equity: 10000}, 0.01)
	require.Len(t, rows, 1)
	assert.InDelta(t, 150, rows[0].RiskUSD, 1e-6)
	assert.Equal(t, "over budget", rows[0].Note)
	assert.Zero(t, rows[0].RR)

	var buf bytes.Buffer
	require.NoError(t, printPlan(&buf, res, snap, config.AccountConfig{Currency: "USD", Equity: 10000}, 0.01))
	assert.Contains(t, buf.String(), "over budget")
	assert.Contains(t, buf.String(), "BUDGET_UNITS")
}
