package exits

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/pkg/snapshot"
)

const kind = "ev_policy"

// ErrNotFound is returned by LoadLatest on an empty policy store.
var ErrNotFound = snapshot.ErrNotFound

// WriteEVPolicy appends policy to the store in dir and publishes it as latest.
func WriteEVPolicy(dir string, policy Policy) (string, error) {
	if err := policy.check(); err != nil {
		return "", fmt.Errorf("write ev policy: %w", err)
	}
	_, path, err := snapshot.Open(dir, kind).WriteVersioned(func(version int64) any {
		p := policy
		p.Version = version
		return p
	})
	if err != nil {
		return "", fmt.Errorf("write ev policy: %w", err)
	}
	return path, nil
}

// Planner proposes exits from the loaded policy. It holds no other state.
type Planner struct {
	policy Policy
}

func NewPlanner(p Policy) (*Planner, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return &Planner{policy: p}, nil
}

// LoadLatest loads the published policy from dir.
func LoadLatest(dir string) (*Planner, error) {
	var p Policy
	if _, err := snapshot.Open(dir, kind).LoadLatest(&p); err != nil {
		return nil, fmt.Errorf("load ev policy: %w", err)
	}
	return NewPlanner(p)
}

func (pl *Planner) Policy() Policy { return pl.policy }

// ProposeExitPlan returns the loaded policy's levels. The policy is symbol
// agnostic; features and symbol are accepted so per-symbol or per-regime
// policies can be selected later without changing callers.
func (pl *Planner) ProposeExitPlan(features map[string]float64, symbol string) (intent.ExitPlan, error) {
	if pl == nil {
		return intent.ExitPlan{}, errors.New("propose exit plan: no policy loaded")
	}
	return intent.ExitPlan{
		TPPips:        pl.policy.TPPips,
		SLPips:        pl.policy.SLPips,
		ExpectedValue: pl.policy.ExpectedValue,
		TimeStopBars:  pl.policy.TimeStopBars,
	}, nil
}

// Apply attaches plan to o. Exit levels already set by the sleeve are kept;
// missing TP/SL prices are derived from ref and the instrument pip size, and a
// missing TTL takes the plan's time stop. Flat intents are returned unchanged.
func Apply(o intent.OrderIntent, plan intent.ExitPlan, ref, pipSize float64) intent.OrderIntent {
	if o.IsFlat() {
		return o
	}
	var e intent.Exit
	if o.Exit != nil {
		e = o.Exit.Clone()
	}
	dir := o.Side.Direction()
	if ref > 0 && pipSize > 0 {
		if e.TP == nil {
			e.TP = intent.Float(ref + dir*plan.TPPips*pipSize)
		}
		if e.SL == nil {
			e.SL = intent.Float(ref - dir*plan.SLPips*pipSize)
		}
	}
	if e.TTLBars == nil {
		e.TTLBars = intent.Int(plan.TimeStopBars)
	}
	return o.WithExit(e, &plan)
}
