package exits

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	t.Parallel()

	path := Path{
		{High: 5, Low: -3, Close: 2},
		{High: 12, Low: 1, Close: 10},
		{High: 25, Low: 8, Close: 20},
	}

	tests := []struct {
		name     string
		tp, sl   float64
		timeStop int
		want     float64
	}{
		{"target hit", 20, 10, 10, 20},
		{"stop first", 20, 2, 10, -2},
		{"time stop exits at close", 50, 10, 2, 10},
		{"path shorter than time stop", 50, 10, 10, 20},
		{"zero time stop", 50, 10, 0, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Outcome(path, tt.tp, tt.sl, tt.timeStop))
		})
	}
}

func TestOutcome_BothLevelsInOneBarFillsStop(t *testing.T) {
	t.Parallel()
	assert.Equal(t, -10.0, Outcome(Path{{High: 30, Low: -30, Close: 0}}, 20, 10, 5))
}

func TestSynthFitEVPolicy_PicksBestCandidate(t *testing.T) {
	t.Parallel()

	// every path runs straight up 5 pips per bar
	var paths []Path
	for i := 0; i < 10; i++ {
		var p Path
		for j := 1; j <= 10; j++ {
			x := float64(5 * j)
			p = append(p, Bar{High: x, Low: x - 5, Close: x})
		}
		paths = append(paths, p)
	}

	pol, err := SynthFitEVPolicy(paths, Grid{
		TPPips:       []float64{10, 30},
		SLPips:       []float64{10},
		TimeStopBars: []int{4, 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 30.0, pol.TPPips)
	assert.Equal(t, 10.0, pol.SLPips)
	assert.Equal(t, 8, pol.TimeStopBars)
	assert.Equal(t, 30.0, pol.ExpectedValue)
	assert.True(t, pol.Usable())
	assert.False(t, pol.FittedAt.IsZero())
}

func TestSynthFitEVPolicy_Errors(t *testing.T) {
	t.Parallel()

	_, err := SynthFitEVPolicy(nil, DefaultGrid())
	assert.Error(t, err)

	_, err = SynthFitEVPolicy([]Path{{}}, Grid{})
	assert.Error(t, err)
}

func TestSyntheticPathsWithDriftFitsPositiveEV(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	paths := SyntheticPaths(rng, 400, 48, 1.5, 4)
	require.Len(t, paths, 400)
	require.Len(t, paths[0], 48)

	pol, err := SynthFitEVPolicy(paths, DefaultGrid())
	require.NoError(t, err)
	assert.Greater(t, pol.ExpectedValue, 0.0)
}

func TestEVPolicyRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pol := Policy{
		TPPips:        23.456789,
		SLPips:        11.000001,
		ExpectedValue: 1.2345678901,
		TimeStopBars:  24,
		FittedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.True(t, pol.Usable())

	_, err := WriteEVPolicy(dir, pol)
	require.NoError(t, err)

	pl, err := LoadLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pl.Policy().Version)

	plan, err := pl.ProposeExitPlan(map[string]float64{"atr": 0.001}, "EUR_USD")
	require.NoError(t, err)
	assert.Equal(t, pol.TPPips, plan.TPPips)
	assert.Equal(t, pol.SLPips, plan.SLPips)
	assert.Equal(t, pol.ExpectedValue, plan.ExpectedValue)
	assert.Equal(t, pol.TimeStopBars, plan.TimeStopBars)

	// symbol agnostic
	other, err := pl.ProposeExitPlan(nil, "USD_JPY")
	require.NoError(t, err)
	assert.Equal(t, plan, other)
}

func TestWriteEVPolicyRejectsUnusable(t *testing.T) {
	t.Parallel()

	_, err := WriteEVPolicy(t.TempDir(), Policy{TPPips: 10, SLPips: 10, ExpectedValue: -0.5, TimeStopBars: 5})
	assert.True(t, errors.Is(err, ErrUnusablePolicy))
}

func TestLoadLatestEmpty(t *testing.T) {
	t.Parallel()

	_, err := LoadLatest(t.TempDir())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestApply(t *testing.T) {
	t.Parallel()

	plan := intent.ExitPlan{TPPips: 20, SLPips: 10, ExpectedValue: 2, TimeStopBars: 12}
	base := intent.OrderIntent{
		TS:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:     "EUR_USD",
		Side:       intent.Short,
		Entry:      intent.Entry{Type: intent.Market},
		Tag:        "t",
		Confidence: 1,
	}

	got := Apply(base, plan, 1.1000, 0.0001)
	require.NotNil(t, got.Exit)
	assert.InDelta(t, 1.0980, *got.Exit.TP, 1e-9)
	assert.InDelta(t, 1.1010, *got.Exit.SL, 1e-9)
	assert.Equal(t, 12, *got.Exit.TTLBars)
	assert.Equal(t, plan, *got.Plan)
	assert.Nil(t, base.Exit)

	// sleeve-provided levels are kept
	withSL := base
	withSL.Exit = &intent.Exit{SL: intent.Float(1.2)}
	got = Apply(withSL, plan, 1.1000, 0.0001)
	assert.Equal(t, 1.2, *got.Exit.SL)

	flat := base.WithFlat()
	assert.Nil(t, Apply(flat, plan, 1.1, 0.0001).Exit)
}
