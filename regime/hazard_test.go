package regime

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var obs = time.Date(2024, 8, 5, 6, 0, 0, 0, time.UTC)

// calmSeries alternates around 0.10 with a sample stddev of ~0.01.
func calmSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 0.09
		} else {
			out[i] = 0.11
		}
	}
	return out
}

func spikeSeries() []float64 {
	s := calmSeries(40)
	// roughly ten standard deviations above the trailing mean
	return append(s, 0.10+10*0.0101)
}

func TestSpikeEntersHazard(t *testing.T) {
	t.Parallel()

	h := New(Config{Threshold: 2.0, MinObservations: 5})
	st := h.UpdateFromVolSeries(spikeSeries(), obs)

	assert.True(t, st.Hazard)
	assert.Equal(t, ReasonVolSpike, st.Reason)
	assert.Greater(t, st.Score, 2.0)
	assert.True(t, h.Active())
}

func TestCalmSeriesStaysCalm(t *testing.T) {
	t.Parallel()

	h := New(DefaultConfig())
	st := h.UpdateFromVolSeries(calmSeries(30), obs)
	assert.False(t, st.Hazard)
	assert.Equal(t, ReasonNone, st.Reason)
	assert.Less(t, st.Score, 2.0)
}

func TestInsufficientData(t *testing.T) {
	t.Parallel()

	h := New(Config{Threshold: 2, MinObservations: 5})
	st := h.UpdateFromVolSeries([]float64{0.1, math.NaN(), 0.2}, obs)
	assert.False(t, st.Hazard)
	assert.Equal(t, ReasonInsufficientData, st.Reason)
}

func TestHysteresis(t *testing.T) {
	t.Parallel()

	h := New(Config{Threshold: 2.0, ExitThreshold: 1.0, MinObservations: 5})
	require.True(t, h.UpdateFromVolSeries(spikeSeries(), obs).Hazard)

	// about 1.5 sigma: below the entry threshold but above the exit one
	mid := append(calmSeries(40), 0.10+1.5*0.0101)
	st := h.UpdateFromVolSeries(mid, obs.Add(time.Hour))
	assert.True(t, st.Hazard)
	assert.Equal(t, ReasonVolSpike, st.Reason)

	back := append(calmSeries(40), 0.10)
	st = h.UpdateFromVolSeries(back, obs.Add(2*time.Hour))
	assert.False(t, st.Hazard)
	assert.Equal(t, ReasonNone, st.Reason)

	// from calm, the same mid score does not trigger
	st = h.UpdateFromVolSeries(mid, obs.Add(3*time.Hour))
	assert.False(t, st.Hazard)
}

func TestSaveReloadPreservesStateAndNeverIncreasesScore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Config{Threshold: 2.0, MinObservations: 5, HalfLife: 6 * time.Hour}
	h := New(cfg)
	saved := h.UpdateFromVolSeries(spikeSeries(), obs)
	_, err := h.SaveStatus(dir)
	require.NoError(t, err)

	for _, elapsed := range []time.Duration{-time.Hour, 0, time.Hour, 48 * time.Hour} {
		now := obs.Add(elapsed)
		r, err := loadLatest(dir, cfg, func() time.Time { return now })
		require.NoError(t, err)
		st := r.State()
		assert.Equal(t, saved.Hazard, st.Hazard)
		assert.Equal(t, saved.Reason, st.Reason)
		assert.LessOrEqual(t, st.Score, saved.Score)
		assert.True(t, st.ObservedAt.Equal(saved.ObservedAt))
	}

	r, err := LoadLatest(dir, Config{Threshold: 2.0})
	require.NoError(t, err)
	assert.True(t, r.Active())
	assert.Equal(t, saved.Score, r.State().Score)
}

func TestNegativeScoreDoesNotDecayUpward(t *testing.T) {
	t.Parallel()
	assert.Equal(t, -3.0, decay(-3, time.Hour, time.Minute))
	assert.InDelta(t, 2.0, decay(4, time.Hour, time.Hour), 1e-12)
}

func TestLoadLatestEmpty(t *testing.T) {
	t.Parallel()

	_, err := LoadLatest(t.TempDir(), DefaultConfig())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGate(t *testing.T) {
	t.Parallel()

	in := []intent.OrderIntent{
		{Symbol: "EUR_USD", Side: intent.Long, Units: 1000},
		{Symbol: "USD_JPY", Side: intent.Flat},
	}

	var calm *Hazard
	out, sup := calm.Gate(in)
	assert.Equal(t, in, out)
	assert.Empty(t, sup)

	h := New(DefaultConfig())
	h.UpdateFromVolSeries(spikeSeries(), obs)
	out, sup = h.Gate(in)
	require.Len(t, out, 2)
	assert.Equal(t, intent.Flat, out[0].Side)
	assert.Zero(t, out[0].Units)
	assert.Equal(t, []string{"EUR_USD"}, sup)
	assert.Equal(t, intent.Long, in[0].Side)
}
