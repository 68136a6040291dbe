// Package selection splits the tradable universe into core and satellite
// symbols for one run.
package selection

import (
	"math"
	"sort"
)

type Reason string

const (
	NoMetrics         Reason = "no_metrics"
	CostTooHigh       Reason = "cost_too_high"
	Illiquid          Reason = "illiquid"
	SatelliteCapacity Reason = "satellite_capacity"
)

// Universe is the configured symbol set. Core symbols are always traded when
// their metrics pass; satellites compete for MaxSatellite slots by score.
type Universe struct {
	Core              []string `yaml:"core" json:"core"`
	Satellite         []string `yaml:"satellite" json:"satellite"`
	MaxSatellite      int      `yaml:"max_satellite" json:"max_satellite" validate:"gte=0"`
	MaxCostMultiplier float64  `yaml:"max_cost_multiplier" json:"max_cost_multiplier" validate:"gte=0"`
	MinLiquidity      float64  `yaml:"min_liquidity" json:"min_liquidity" validate:"gte=0"`
}

// Empty reports whether no symbols are configured, in which case selection
// is skipped.
func (u Universe) Empty() bool { return len(u.Core) == 0 && len(u.Satellite) == 0 }

// Metrics are the per-symbol figures selection ranks on.
type Metrics struct {
	Liquidity      float64
	CostMultiplier float64
	Score          float64
}

// Result is derived per run and never persisted.
type Result struct {
	Core      map[string]struct{} `json:"core"`
	Satellite map[string]struct{} `json:"satellite"`
	Excluded  map[string]Reason   `json:"excluded"`
}

// Allows reports whether symbol was selected as core or satellite.
func (r Result) Allows(symbol string) bool {
	if _, ok := r.Core[symbol]; ok {
		return true
	}
	_, ok := r.Satellite[symbol]
	return ok
}

// Select applies the universe filters to metrics. A symbol listed as both
// core and satellite is treated as core.
func Select(u Universe, metrics map[string]Metrics) Result {
	res := Result{
		Core:      map[string]struct{}{},
		Satellite: map[string]struct{}{},
		Excluded:  map[string]Reason{},
	}

	screen := func(sym string) bool {
		m, ok := metrics[sym]
		switch {
		case !ok:
			res.Excluded[sym] = NoMetrics
		case u.MaxCostMultiplier > 0 && m.CostMultiplier > u.MaxCostMultiplier:
			res.Excluded[sym] = CostTooHigh
		case m.Liquidity < u.MinLiquidity:
			res.Excluded[sym] = Illiquid
		default:
			return true
		}
		return false
	}

	for _, sym := range u.Core {
		if screen(sym) {
			res.Core[sym] = struct{}{}
		}
	}

	var cands []string
	seen := map[string]bool{}
	for _, sym := range u.Satellite {
		if _, core := res.Core[sym]; core || seen[sym] || isCore(u, sym) {
			continue
		}
		seen[sym] = true
		if screen(sym) {
			cands = append(cands, sym)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := score(metrics[cands[i]]), score(metrics[cands[j]])
		if a != b {
			return a > b
		}
		return cands[i] < cands[j]
	})
	for i, sym := range cands {
		if i < u.MaxSatellite {
			res.Satellite[sym] = struct{}{}
		} else {
			res.Excluded[sym] = SatelliteCapacity
		}
	}
	return res
}

func isCore(u Universe, sym string) bool {
	for _, c := range u.Core {
		if c == sym {
			return true
		}
	}
	return false
}

func score(m Metrics) float64 {
	if math.IsNaN(m.Score) {
		return math.Inf(-1)
	}
	return m.Score
}
