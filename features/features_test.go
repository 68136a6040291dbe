package features

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "features"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func volFrame(t *testing.T) Frame {
	t.Helper()
	f, err := NewFrame(
		TimeColumn("time", []time.Time{day, day.Add(time.Hour), day.Add(2 * time.Hour)}),
		FloatColumn("vol", []float64{0.1, math.NaN(), 0.12}),
	)
	require.NoError(t, err)
	return f
}

func TestPutKeyStability(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	df := volFrame(t)
	p := Params{"window": 20, "annualize": true}

	k1, err := s.Put("realized_vol", df, p, "v1")
	require.NoError(t, err)
	k2, err := s.Put("realized_vol", df, Params{"annualize": true, "window": 20}, "v1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	ok, err := s.Exists("realized_vol", k1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPutKeySensitivity(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	df := volFrame(t)
	base, err := s.Put("realized_vol", df, Params{"window": 20}, "v1")
	require.NoError(t, err)

	otherParams, err := s.Put("realized_vol", df, Params{"window": 21}, "v1")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherParams)

	otherVersion, err := s.Put("realized_vol", df, Params{"window": 20}, "v2")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherVersion)

	wider, err := NewFrame(append(df.Columns, FloatColumn("atr", []float64{1, 2, 3}))...)
	require.NoError(t, err)
	otherSchema, err := s.Put("realized_vol", wider, Params{"window": 20}, "v1")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherSchema)

	retyped, err := NewFrame(df.Columns[0], IntColumn("vol", []int64{1, 2, 3}))
	require.NoError(t, err)
	otherType, err := s.Put("realized_vol", retyped, Params{"window": 20}, "v1")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherType)
}

func TestContentKeyIgnoresColumnOrder(t *testing.T) {
	t.Parallel()

	a := []Field{{"time", KindTime}, {"vol", KindFloat}}
	b := []Field{{"vol", KindFloat}, {"time", KindTime}}
	ka, err := ContentKey(a, Params{"w": 1}, "v1")
	require.NoError(t, err)
	kb, err := ContentKey(b, Params{"w": 1}, "v1")
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	df := volFrame(t)
	key, err := s.Put("realized_vol", df, Params{"window": 20}, "v1")
	require.NoError(t, err)

	got, err := s.Get("realized_vol", key)
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())

	ts, ok := got.Column("time")
	require.True(t, ok)
	for i := range ts.Times {
		assert.True(t, ts.Times[i].Equal(df.Columns[0].Times[i]))
	}
	vol, _ := got.Column("vol")
	assert.Equal(t, 0.1, vol.Floats[0])
	assert.True(t, math.IsNaN(vol.Floats[1]))
	assert.Equal(t, 0.12, vol.Floats[2])

	meta, err := s.Meta("realized_vol", key)
	require.NoError(t, err)
	assert.Equal(t, "v1", meta.Version)
	assert.Equal(t, 3, meta.Rows)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	key, err := ContentKey([]Field{{"x", KindFloat}}, nil, "v1")
	require.NoError(t, err)

	_, err = s.Get("nothing", key)
	assert.True(t, errors.Is(err, ErrNotFound))

	ok, err := s.Exists("nothing", key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get("../escape", key)
	assert.Error(t, err)
}

func TestGetOrCompute(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	df := volFrame(t)
	calls := 0
	compute := func() (Frame, error) { calls++; return df, nil }

	_, k1, err := s.GetOrCompute("rv", df.Schema(), Params{"w": 5}, "v1", compute)
	require.NoError(t, err)
	_, k2, err := s.GetOrCompute("rv", df.Schema(), Params{"w": 5}, "v1", compute)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, calls)
}

func priceFrame(t *testing.T, start time.Time, closes ...float64) Frame {
	t.Helper()
	n := len(closes)
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Hour)
	}
	f, err := NewFrame(
		TimeColumn("time", ts),
		FloatColumn("open", closes),
		FloatColumn("high", closes),
		FloatColumn("low", closes),
		FloatColumn("close", closes),
	)
	require.NoError(t, err)
	return f
}

func TestUpsertPricesMergesAndDedupes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.UpsertPrices(ctx, "EUR_USD", priceFrame(t, day, 1.10, 1.11, 1.12))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// overlaps the last two hours and adds one
	n, err = s.UpsertPrices(ctx, "EUR_USD", priceFrame(t, day.Add(time.Hour), 2.11, 2.12, 2.13))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.GetPrices(ctx, "EUR_USD")
	require.NoError(t, err)
	cl, _ := got.Column("close")
	assert.Equal(t, []float64{1.10, 2.11, 2.12, 2.13}, cl.Floats)

	vol, _ := got.Column("volume")
	assert.True(t, math.IsNaN(vol.Floats[0]))

	// other symbols are untouched
	n, err = s.UpsertPrices(ctx, "USD_JPY", priceFrame(t, day, 150))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	syms, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR_USD", "USD_JPY"}, syms)
}

func TestUpsertPricesSchemaMismatch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	bad, err := NewFrame(
		TimeColumn("time", []time.Time{day}),
		FloatColumn("close", []float64{1.1}),
		StringColumn("open", []string{"x"}),
	)
	require.NoError(t, err)

	_, err = s.UpsertPrices(context.Background(), "EUR_USD", bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.ElementsMatch(t, []string{"high", "low"}, se.Missing)
	assert.Len(t, se.Mistyped, 1)
}

func TestGetPricesMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.GetPrices(context.Background(), "GBP_USD")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecordProvenanceIDsIncrease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.RecordProvenance(ctx, "prices/EUR_USD", "import", "file://eurusd.csv", "v1")
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
	_, err := s.RecordProvenance(ctx, "rv/abc", "derived", "prices/EUR_USD", "v2")
	require.NoError(t, err)

	rows, err := s.ListProvenance(ctx, "prices/EUR_USD")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "import", rows[0].Kind)

	all, err := s.ListProvenance(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestNewFrameRejectsRaggedColumns(t *testing.T) {
	t.Parallel()

	_, err := NewFrame(FloatColumn("a", []float64{1}), FloatColumn("b", []float64{1, 2}))
	assert.Error(t, err)

	_, err = NewFrame(FloatColumn("a", nil), FloatColumn("a", nil))
	assert.Error(t, err)
}
