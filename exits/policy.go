// Package exits fits, stores and serves the expected-value-optimal exit
// policy: a take-profit, a stop-loss (both in pips) and a time stop in bars.
package exits

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrUnusablePolicy is returned for a policy whose expected value is not
// positive or whose levels are not all positive.
var ErrUnusablePolicy = errors.New("exit policy not usable")

type Policy struct {
	TPPips        float64   `json:"tp_pips"`
	SLPips        float64   `json:"sl_pips"`
	ExpectedValue float64   `json:"expected_value"`
	TimeStopBars  int       `json:"time_stop_bars"`
	FittedAt      time.Time `json:"fitted_at"`
	Version       int64     `json:"version"`
}

// Usable reports whether the policy can be proposed for live trades.
func (p Policy) Usable() bool {
	return p.ExpectedValue > 0 && p.TPPips > 0 && p.SLPips > 0 && p.TimeStopBars > 0
}

func (p Policy) check() error {
	if !p.Usable() {
		return fmt.Errorf("%w: tp=%.2f sl=%.2f ev=%.4f time_stop=%d",
			ErrUnusablePolicy, p.TPPips, p.SLPips, p.ExpectedValue, p.TimeStopBars)
	}
	return nil
}

// Bar is one bar of a trade's excursion path, in pips relative to the entry
// price and signed so that positive is in the trade's favour.
type Bar struct {
	High  float64
	Low   float64
	Close float64
}

type Path []Bar

// Grid is the candidate set searched by SynthFitEVPolicy.
type Grid struct {
	TPPips       []float64
	SLPips       []float64
	TimeStopBars []int
}

func DefaultGrid() Grid {
	return Grid{
		TPPips:       []float64{10, 15, 20, 30, 40, 60},
		SLPips:       []float64{10, 15, 20, 30, 40},
		TimeStopBars: []int{6, 12, 24, 48},
	}
}

// Outcome simulates one path under the given levels and returns the realized
// pips. When a bar touches both levels the stop is assumed to fill first.
func Outcome(path Path, tp, sl float64, timeStop int) float64 {
	n := len(path)
	if timeStop < n {
		n = timeStop
	}
	for i := 0; i < n; i++ {
		b := path[i]
		if b.Low <= -sl {
			return -sl
		}
		if b.High >= tp {
			return tp
		}
	}
	if n == 0 {
		return 0
	}
	return path[n-1].Close
}

// SynthFitEVPolicy searches grid for the levels with the highest mean outcome
// over paths. The returned policy's ExpectedValue is that mean, in pips per
// trade; callers must check Usable before relying on it. Ties keep the first
// candidate in grid order.
func SynthFitEVPolicy(paths []Path, grid Grid) (Policy, error) {
	if len(paths) == 0 {
		return Policy{}, errors.New("fit exit policy: no paths")
	}
	if len(grid.TPPips) == 0 || len(grid.SLPips) == 0 || len(grid.TimeStopBars) == 0 {
		return Policy{}, errors.New("fit exit policy: empty grid")
	}

	best := Policy{ExpectedValue: math.Inf(-1)}
	for _, ts := range grid.TimeStopBars {
		if ts <= 0 {
			continue
		}
		for _, tp := range grid.TPPips {
			for _, sl := range grid.SLPips {
				if tp <= 0 || sl <= 0 {
					continue
				}
				sum := 0.0
				for _, p := range paths {
					sum += Outcome(p, tp, sl, ts)
				}
				ev := sum / float64(len(paths))
				if ev > best.ExpectedValue {
					best = Policy{TPPips: tp, SLPips: sl, ExpectedValue: ev, TimeStopBars: ts}
				}
			}
		}
	}
	if math.IsInf(best.ExpectedValue, -1) {
		return Policy{}, errors.New("fit exit policy: grid has no positive candidates")
	}
	best.FittedAt = time.Now().UTC()
	return best, nil
}

// SyntheticPaths draws n random-walk excursion paths of the given length with
// a per-bar drift and volatility in pips. It gives the fitter something to
// work on before real trade history is available.
func SyntheticPaths(rng *rand.Rand, n, bars int, driftPips, volPips float64) []Path {
	out := make([]Path, 0, n)
	for i := 0; i < n; i++ {
		p := make(Path, 0, bars)
		price := 0.0
		for j := 0; j < bars; j++ {
			open := price
			price += driftPips + volPips*rng.NormFloat64()
			wick := math.Abs(volPips * 0.5 * rng.NormFloat64())
			p = append(p, Bar{
				High:  math.Max(open, price) + wick,
				Low:   math.Min(open, price) - wick,
				Close: price,
			})
		}
		out = append(out, p)
	}
	return out
}
