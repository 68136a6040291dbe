package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	u := Universe{
		Core:              []string{"EUR_USD", "USD_JPY", "GBP_USD"},
		Satellite:         []string{"AUD_USD", "NZD_USD", "USD_CAD", "USD_TRY", "EUR_USD"},
		MaxSatellite:      1,
		MaxCostMultiplier: 2,
		MinLiquidity:      0.5,
	}
	metrics := map[string]Metrics{
		"EUR_USD": {Liquidity: 1, CostMultiplier: 1, Score: 0.1},
		"USD_JPY": {Liquidity: 1, CostMultiplier: 3},
		"AUD_USD": {Liquidity: 0.9, CostMultiplier: 1.2, Score: 0.4},
		"NZD_USD": {Liquidity: 0.8, CostMultiplier: 1.1, Score: 0.7},
		"USD_TRY": {Liquidity: 0.1, CostMultiplier: 1, Score: 5},
	}

	res := Select(u, metrics)
	assert.Equal(t, map[string]struct{}{"EUR_USD": {}}, res.Core)
	assert.Equal(t, map[string]struct{}{"NZD_USD": {}}, res.Satellite)
	assert.Equal(t, map[string]Reason{
		"USD_JPY": CostTooHigh,
		"GBP_USD": NoMetrics,
		"USD_CAD": NoMetrics,
		"USD_TRY": Illiquid,
		"AUD_USD": SatelliteCapacity,
	}, res.Excluded)

	assert.True(t, res.Allows("EUR_USD"))
	assert.True(t, res.Allows("NZD_USD"))
	assert.False(t, res.Allows("AUD_USD"))
	assert.False(t, res.Allows("XAU_USD"))
}

func TestSelectTiesBreakBySymbol(t *testing.T) {
	t.Parallel()

	u := Universe{Satellite: []string{"B", "A", "C"}, MaxSatellite: 2}
	m := map[string]Metrics{"A": {Score: 1}, "B": {Score: 1}, "C": {Score: 1}}
	res := Select(u, m)
	assert.Equal(t, map[string]struct{}{"A": {}, "B": {}}, res.Satellite)
	assert.Equal(t, SatelliteCapacity, res.Excluded["C"])
}

func TestUniverseEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Universe{}.Empty())
	assert.False(t, Universe{Satellite: []string{"A"}}.Empty())
}
