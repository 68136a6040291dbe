package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradefuse/market"
)

func createTestCandles() []market.Candle {
	return []market.Candle{
		{Open: 100, High: 105, Low: 99, Close: 102},
		{Open: 102, High: 107, Low: 101, Close: 105},
		{Open: 105, High: 108, Low: 104, Close: 106},
		{Open: 106, High: 110, Low: 105, Close: 108},
		{Open: 108, High: 112, Low: 107, Close: 110},
		{Open: 110, High: 113, Low: 109, Close: 111},
		{Open: 111, High: 115, Low: 110, Close: 113},
		{Open: 113, High: 116, Low: 112, Close: 114},
		{Open: 114, High: 118, Low: 113, Close: 116},
		{Open: 116, High: 120, Low: 115, Close: 118},
	}
}

func TestSMASeries(t *testing.T) {
	closes := make([]float64, 0, 10)
	for _, c := range createTestCandles() {
		closes = append(closes, c.Close)
	}
	got := SMASeries(closes, 5)
	require.Len(t, got, 10)
	for _, v := range got[:4] {
		assert.True(t, math.IsNaN(v))
	}
	// first window 102,105,106,108,110; last 111,113,114,116,118
	assert.InDelta(t, 106.2, got[4], 1e-9)
	assert.InDelta(t, 114.4, got[9], 1e-9)
}

func TestValuesResetsIndicator(t *testing.T) {
	candles := createTestCandles()
	ema := NewEMA(5)
	first := Values(ema, candles)
	second := Values(ema, candles)
	assert.Equal(t, first[4:], second[4:])
	assert.InDelta(t, first[9], ema.Value(), 1e-12)
	assert.Greater(t, first[9], 110.0)
	assert.Less(t, first[9], 118.0)
}

func TestEMASeries(t *testing.T) {
	got := EMASeries([]float64{1, 2, 3, 4}, 3)
	require.Len(t, got, 4)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 3.0, got[3], 1e-12)
}

func TestATRFuncDetailed(t *testing.T) {
	candles := []market.Candle{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
	}
	atr, err := ATRFunc(candles, 3)
	assert.NoError(t, err)
	assert.InDelta(t, 2.0, atr, 1e-9)

	_, err = ATRFunc(candles[:3], 3)
	assert.Error(t, err)
}

func TestTrueRange(t *testing.T) {
	current := market.Candle{High: 110, Low: 100, Close: 105}
	assert.Equal(t, 10.0, trueRange(current, market.Candle{Close: 104}))
	// gap up: previous close below the low
	assert.Equal(t, 20.0, trueRange(current, market.Candle{Close: 90}))
}

func TestLogReturns(t *testing.T) {
	got := LogReturns([]float64{1, math.E, 0, 2})
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 1.0, got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]))
	assert.True(t, math.IsNaN(got[3]))
}

func TestRealizedVol(t *testing.T) {
	t.Run("constant growth has zero vol", func(t *testing.T) {
		prices := []float64{100, 101, 102.01, 103.0301, 104.060401}
		got := RealizedVol(prices, 3, DailyPeriods)
		assert.True(t, math.IsNaN(got[0]))
		assert.True(t, math.IsNaN(got[1]))
		for _, v := range got[2:] {
			assert.InDelta(t, 0, v, 1e-6)
		}
	})

	t.Run("alternating moves", func(t *testing.T) {
		prices := []float64{100, 110, 100, 110, 100}
		got := RealizedVol(prices, 4, 1)
		r := math.Log(1.1)
		// returns r, -r, r: mean r/3, sample var = (3r^2 - 3(r/3)^2)/2
		want := math.Sqrt((3*r*r - r*r/3) / 2)
		assert.InDelta(t, want, got[3], 1e-12)
		// full window r, -r, r, -r: mean 0, sample var = 4r^2/3
		assert.InDelta(t, math.Sqrt(4*r*r/3), got[4], 1e-12)
	})

	t.Run("window too small", func(t *testing.T) {
		for _, v := range RealizedVol([]float64{1, 2, 3}, 1, 1) {
			assert.True(t, math.IsNaN(v))
		}
	})
}
