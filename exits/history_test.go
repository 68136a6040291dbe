package exits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
)

func TestPathsFromCandles(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		{High: 1.1005, Low: 1.0995, Close: 1.1000},
		{High: 1.1020, Low: 1.0990, Close: 1.1010},
		{High: 1.1030, Low: 1.1000, Close: 1.1025},
		{High: 1.1040, Low: 1.1015, Close: 1.1035},
	}
	paths := PathsFromCandles(candles, 0.0001, 2, intent.Flat)
	// three entries with a following bar, one long and one short each
	require.Len(t, paths, 6)

	long, short := paths[0], paths[1]
	require.Len(t, long, 2)
	assert.InDelta(t, 20, long[0].High, 1e-6)
	assert.InDelta(t, -10, long[0].Low, 1e-6)
	assert.InDelta(t, 10, long[0].Close, 1e-6)
	assert.InDelta(t, 10, short[0].High, 1e-6)
	assert.InDelta(t, -20, short[0].Low, 1e-6)
	assert.InDelta(t, -10, short[0].Close, 1e-6)

	// the last entry only has one bar left
	assert.Len(t, paths[4], 1)

	longs := PathsFromCandles(candles, 0.0001, 2, intent.Long)
	require.Len(t, longs, 3)
	assert.Equal(t, long, longs[0])
	shorts := PathsFromCandles(candles, 0.0001, 2, intent.Short)
	require.Len(t, shorts, 3)
	assert.Equal(t, short, shorts[0])

	assert.Nil(t, PathsFromCandles(candles, 0, 2, intent.Flat))
	assert.Nil(t, PathsFromCandles(candles, 0.0001, 0, intent.Flat))
}
