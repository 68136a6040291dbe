package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
	"github.com/rustyeddy/tradefuse/pipeline"
	"github.com/rustyeddy/tradefuse/regime"
	"github.com/rustyeddy/tradefuse/sleeves"
)

var t0 = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func hourly(symbol string, start, n int, vol func(i int) float64) market.Series {
	s := market.Series{Symbol: symbol}
	for i := 0; i < n; i++ {
		s.Candles = append(s.Candles, market.Candle{
			Time: t0.Add(time.Duration(start+i) * time.Hour),
			Open: 1.1, High: 1.101, Low: 1.099, Close: 1.1,
		})
		s.Vol = append(s.Vol, vol(i))
	}
	return s
}

func flatVol(int) float64 { return 0.1 }

func TestSeriesFeed(t *testing.T) {
	t.Parallel()

	eur := hourly("EUR_USD", 0, 4, flatVol)
	jpy := hourly("USD_JPY", 2, 4, flatVol)

	t.Run("union of bar times without lookahead", func(t *testing.T) {
		t.Parallel()
		f := NewSeriesFeed([]market.Series{eur, jpy}, time.Time{}, time.Time{}, 0)
		require.Equal(t, 6, f.Steps())

		snap, ok, err := f.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, snap.AsOf.Equal(t0))
		assert.Equal(t, []string{"EUR_USD"}, snap.Symbols())
		assert.Equal(t, 1, snap.Series["EUR_USD"].Len())

		for i := 0; i < 2; i++ {
			snap, ok, err = f.Next()
			require.NoError(t, err)
			require.True(t, ok)
		}
		assert.True(t, snap.AsOf.Equal(t0.Add(2*time.Hour)))
		assert.Equal(t, 3, snap.Series["EUR_USD"].Len())
		assert.Len(t, snap.Series["EUR_USD"].Vol, 3)
		assert.Equal(t, 1, snap.Series["USD_JPY"].Len())

		for i := 0; i < 3; i++ {
			_, ok, err = f.Next()
			require.NoError(t, err)
			require.True(t, ok)
		}
		_, ok, err = f.Next()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("range and warmup", func(t *testing.T) {
		t.Parallel()
		f := NewSeriesFeed([]market.Series{eur, jpy}, t0.Add(time.Hour), t0.Add(4*time.Hour), 0)
		assert.Equal(t, 3, f.Steps())

		f = NewSeriesFeed([]market.Series{eur, jpy}, time.Time{}, time.Time{}, 4)
		assert.Equal(t, 2, f.Steps())
		snap, ok, err := f.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, snap.AsOf.Equal(t0.Add(4*time.Hour)))

		f = NewSeriesFeed([]market.Series{eur}, time.Time{}, time.Time{}, 10)
		assert.Equal(t, 0, f.Steps())
	})
}

type memJournal struct {
	runs []pipeline.Result
	err  error
}

func (m *memJournal) RecordRun(_ context.Context, res pipeline.Result) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, res)
	return nil
}

func (m *memJournal) Close() error { return nil }

func longEUR() sleeves.Sleeve {
	return sleeves.Func(func(snap market.Snapshot) ([]intent.OrderIntent, error) {
		return []intent.OrderIntent{{
			TS: snap.AsOf, Symbol: "EUR_USD", Side: intent.Long,
			Entry: intent.Entry{Type: intent.Market}, Tag: "always", Confidence: 1,
		}}, nil
	})
}

func TestRunnerValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := pipeline.New(nil)
	feed := NewSeriesFeed(nil, time.Time{}, time.Time{}, 0)

	tests := []struct {
		name string
		r    *Runner
	}{
		{"missing pipeline", &Runner{Feed: feed}},
		{"missing feed", &Runner{Pipeline: p}},
		{"hazard without symbol", &Runner{Pipeline: p, Feed: feed, Hazard: regime.New(regime.DefaultConfig())}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.r.Run(ctx)
			assert.Error(t, err)
		})
	}
}

func TestRunnerHazardAndJournal(t *testing.T) {
	t.Parallel()

	// calm alternating vol, then a jump on the last bar
	eur := hourly("EUR_USD", 0, 12, func(i int) float64 {
		switch {
		case i == 11:
			return 1.0
		case i%2 == 0:
			return 0.10
		default:
			return 0.11
		}
	})

	h := regime.New(regime.DefaultConfig())
	p := pipeline.New(map[string]sleeves.Sleeve{"always": longEUR()}, pipeline.WithHazard(h))
	j := &memJournal{}
	r := &Runner{
		Pipeline:     p,
		Feed:         NewSeriesFeed([]market.Series{eur}, time.Time{}, time.Time{}, 0),
		Account:      pipeline.Account{Equity: 100_000},
		Journal:      j,
		Hazard:       h,
		HazardSymbol: "EUR_USD",
	}

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, res.Runs)
	assert.Equal(t, 12, res.Intents)
	assert.Equal(t, 11, res.Directional)
	assert.Equal(t, 1, res.HazardSteps)
	assert.Equal(t, 1, res.Warnings)
	assert.Equal(t, 11, res.BySide[intent.Long])
	assert.Equal(t, 1, res.BySide[intent.Flat])
	assert.True(t, res.Start.Equal(t0))
	assert.True(t, res.End.Equal(t0.Add(11*time.Hour)))

	require.Len(t, j.runs, 12)
	last := j.runs[11]
	assert.True(t, last.Hazard.Hazard)
	require.Len(t, last.Intents, 1)
	assert.True(t, last.Intents[0].IsFlat())
	assert.Equal(t, pipeline.CodeHazardActive, last.Warnings[0].Code)
}

func TestRunnerStopsOnErrors(t *testing.T) {
	t.Parallel()
	eur := hourly("EUR_USD", 0, 3, flatVol)
	p := pipeline.New(map[string]sleeves.Sleeve{"always": longEUR()})

	t.Run("journal error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk full")
		r := &Runner{
			Pipeline: p,
			Feed:     NewSeriesFeed([]market.Series{eur}, time.Time{}, time.Time{}, 0),
			Account:  pipeline.Account{Equity: 100_000},
			Journal:  &memJournal{err: boom},
		}
		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := &Runner{
			Pipeline: p,
			Feed:     NewSeriesFeed([]market.Series{eur}, time.Time{}, time.Time{}, 0),
			Account:  pipeline.Account{Equity: 100_000},
		}
		res, err := r.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, res.Runs)
	})
}
