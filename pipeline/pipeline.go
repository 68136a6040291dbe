// Package pipeline runs sleeves and carries their intents through netting,
// risk caps, sizing, cost, exit planning and the regime gate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/tradefuse/cost"
	"github.com/rustyeddy/tradefuse/exits"
	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
	"github.com/rustyeddy/tradefuse/netting"
	"github.com/rustyeddy/tradefuse/pkg/id"
	"github.com/rustyeddy/tradefuse/pkg/metrics"
	"github.com/rustyeddy/tradefuse/regime"
	"github.com/rustyeddy/tradefuse/risk"
	"github.com/rustyeddy/tradefuse/selection"
	"github.com/rustyeddy/tradefuse/sleeves"
)

// Sizing configures the volatility-targeting stage.
type Sizing struct {
	TargetAnnVol    float64 `yaml:"target_ann_vol" json:"target_ann_vol" default:"0.1" validate:"gt=0"`
	PerTradeRiskCap float64 `yaml:"per_trade_risk_cap" json:"per_trade_risk_cap" validate:"gte=0,lte=1"`
}

// Account is the book state a run is evaluated against.
type Account struct {
	Equity       float64
	MTDReturn    float64
	Held         map[string]intent.Side
	Correlations risk.Correlations
}

// MetricsFunc supplies selection metrics for a run.
type MetricsFunc func(snap market.Snapshot) map[string]selection.Metrics

type Pipeline struct {
	sleeves  map[string]sleeves.Sleeve
	overlay  risk.Overlay
	universe selection.Universe
	metricFn MetricsFunc
	sizing   Sizing
	costs    *cost.Model
	planner  *exits.Planner
	hazard   *regime.Hazard
	log      zerolog.Logger
	rec      *metrics.Recorder
}

type Option func(*Pipeline)

func WithOverlay(ov risk.Overlay) Option { return func(p *Pipeline) { p.overlay = ov } }

// WithUniverse enables universe selection. metricFn may be nil, in which
// case metrics are derived from the cost model.
func WithUniverse(u selection.Universe, metricFn MetricsFunc) Option {
	return func(p *Pipeline) { p.universe, p.metricFn = u, metricFn }
}

func WithSizing(s Sizing) Option               { return func(p *Pipeline) { p.sizing = s } }
func WithCostModel(m *cost.Model) Option       { return func(p *Pipeline) { p.costs = m } }
func WithExitPlanner(pl *exits.Planner) Option { return func(p *Pipeline) { p.planner = pl } }
func WithHazard(h *regime.Hazard) Option       { return func(p *Pipeline) { p.hazard = h } }
func WithLogger(l zerolog.Logger) Option       { return func(p *Pipeline) { p.log = l } }
func WithMetrics(r *metrics.Recorder) Option   { return func(p *Pipeline) { p.rec = r } }

// New builds a pipeline over the sleeves, keyed by tag. Every store is
// optional: without a cost model every multiplier is 1, without a planner no
// exit plan is attached and without a hazard detector nothing is gated.
func New(sl map[string]sleeves.Sleeve, opts ...Option) *Pipeline {
	p := &Pipeline{
		sleeves: sl,
		overlay: risk.PassThrough,
		sizing:  Sizing{TargetAnnVol: 0.1},
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Result is the outcome of one run. Intents hold every surviving intent in
// canonical order, including those forced flat; Warnings explain every
// suppression.
type Result struct {
	RunID     string               `json:"run_id"`
	AsOf      time.Time            `json:"as_of"`
	Intents   []intent.OrderIntent `json:"intents"`
	Warnings  []Warning            `json:"warnings"`
	Hazard    regime.State         `json:"hazard"`
	Selection *selection.Result    `json:"selection,omitempty"`
}

// Directional returns the intents that carry a position.
func (r Result) Directional() []intent.OrderIntent {
	var out []intent.OrderIntent
	for _, o := range r.Intents {
		if !o.IsFlat() {
			out = append(out, o)
		}
	}
	return out
}

// Run evaluates one snapshot. ctx is only checked before the run starts; once
// started a run completes. A failing sleeve is reported as a warning and the
// run continues with the others.
func (p *Pipeline) Run(ctx context.Context, snap market.Snapshot, acct Account) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	r := &run{p: p, res: Result{RunID: id.New(), AsOf: snap.AsOf}}
	r.log = p.log.With().Str("run_id", r.res.RunID).Logger()

	intents := r.collect(snap)
	intents = r.validate(intents)
	intents = r.selectUniverse(snap, intents)
	intents = r.requireData(snap, intents)
	intents = r.net(intents)
	intents = r.applyOverlay(intents, acct)
	intents = r.size(snap, acct, intents)
	intents = r.applyCost(intents)
	intents = r.planExits(snap, intents)
	intents = r.gate(intents)

	r.res.Intents = intents
	if p.hazard != nil {
		r.res.Hazard = p.hazard.State()
	}
	for _, o := range intents {
		p.rec.RecordIntentOut(string(o.Side))
	}
	p.rec.RecordHazard(p.hazard.Active())
	p.rec.RecordRun(time.Since(start))

	r.log.Info().
		Time("as_of", snap.AsOf).
		Int("intents", len(intents)).
		Int("directional", len(r.res.Directional())).
		Int("warnings", len(r.res.Warnings)).
		Dur("took", time.Since(start)).
		Msg("run complete")
	return r.res, nil
}

type run struct {
	p   *Pipeline
	res Result
	log zerolog.Logger
}

func (r *run) warn(stage, code string, o intent.OrderIntent, format string, args ...any) {
	w := Warning{Stage: stage, Code: code, Symbol: o.Symbol, Tag: o.Tag, Msg: fmt.Sprintf(format, args...)}
	r.res.Warnings = append(r.res.Warnings, w)
	r.p.rec.RecordWarning(stage, code)
	r.log.Warn().
		Str("stage", stage).
		Str("code", code).
		Str("symbol", w.Symbol).
		Str("tag", w.Tag).
		Msg(w.Msg)
}

func (r *run) collect(snap market.Snapshot) []intent.OrderIntent {
	tags := make([]string, 0, len(r.p.sleeves))
	for tag := range r.p.sleeves {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	// A failing sleeve must not cancel the others: each goroutine parks its
	// error in errs[i] and returns nil, and collect turns errs into warnings.
	outs := make([][]intent.OrderIntent, len(tags))
	errs := make([]error, len(tags))
	var g errgroup.Group
	for i, tag := range tags {
		s := r.p.sleeves[tag]
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					errs[i] = fmt.Errorf("panic: %v", v)
				}
			}()
			outs[i], errs[i] = s.Signals(snap)
			return nil
		})
	}
	_ = g.Wait()

	var all []intent.OrderIntent
	for i, tag := range tags {
		if errs[i] != nil {
			r.warn(StageSleeve, CodeSleeveFailed, intent.OrderIntent{Tag: tag}, "%v", errs[i])
			continue
		}
		r.p.rec.RecordIntentsIn(tag, len(outs[i]))
		all = append(all, outs[i]...)
	}
	return all
}

func (r *run) validate(in []intent.OrderIntent) []intent.OrderIntent {
	out := in[:0:0]
	for _, o := range in {
		if err := o.Validate(); err != nil {
			var ve *intent.ValidationError
			if errors.As(err, &ve) {
				r.warn(StageValidate, CodeInvalidIntent, o, "invalid fields %v", ve.Fields)
			} else {
				r.warn(StageValidate, CodeInvalidIntent, o, "%v", err)
			}
			continue
		}
		out = append(out, o)
	}
	return out
}

func (r *run) selectUniverse(snap market.Snapshot, in []intent.OrderIntent) []intent.OrderIntent {
	if r.p.universe.Empty() {
		return in
	}
	fn := r.p.metricFn
	if fn == nil {
		fn = CostMetrics(r.p.costs)
	}
	sel := selection.Select(r.p.universe, fn(snap))
	r.res.Selection = &sel

	out := in[:0:0]
	for _, o := range in {
		if !sel.Allows(o.Symbol) {
			reason := "not in universe"
			if why, ok := sel.Excluded[o.Symbol]; ok {
				reason = string(why)
			}
			r.warn(StageSelect, CodeNotSelected, o, "%s", reason)
			continue
		}
		out = append(out, o)
	}
	return out
}

func (r *run) requireData(snap market.Snapshot, in []intent.OrderIntent) []intent.OrderIntent {
	out := in[:0:0]
	for _, o := range in {
		ser, ok := snap.Get(o.Symbol)
		if !ok || !ser.Usable() {
			r.warn(StageData, CodeMissingData, o, "no usable price or volatility for %s", o.Symbol)
			continue
		}
		out = append(out, o)
	}
	return out
}

func (r *run) net(in []intent.OrderIntent) []intent.OrderIntent {
	out, dropped := netting.Net(in)
	for _, d := range dropped {
		r.warn(StageNet, CodeNettedOut, d, "lost to a higher priority intent at %s", d.TS.UTC().Format(time.RFC3339))
	}
	return out
}

func (r *run) applyOverlay(in []intent.OrderIntent, acct Account) []intent.OrderIntent {
	out, vs := r.p.overlay.ApplyCaps(in, acct.Equity, risk.Book{
		MTDReturn:    acct.MTDReturn,
		Held:         acct.Held,
		Correlations: acct.Correlations,
	})
	for _, v := range vs {
		r.warn(StageOverlay, v.Code, intent.OrderIntent{Symbol: v.Symbol, Tag: v.Tag}, "%s", v.Msg)
	}
	return out
}

func (r *run) size(snap market.Snapshot, acct Account, in []intent.OrderIntent) []intent.OrderIntent {
	out := make([]intent.OrderIntent, len(in))
	for i, o := range in {
		if o.IsFlat() {
			out[i] = o.WithUnits(0)
			continue
		}
		ser, _ := snap.Get(o.Symbol)
		closes := ser.Closes()
		sized, capped := risk.SizeIntent(o, risk.SizingInputs{
			Equity:          acct.Equity,
			TargetAnnVol:    r.p.sizing.TargetAnnVol,
			Prices:          closes,
			Vols:            ser.Vol,
			PerTradeRiskCap: r.p.sizing.PerTradeRiskCap,
			StopDistance:    stopDistance(o, closes[len(closes)-1]),
		})
		if capped {
			r.warn(StageSize, risk.CodeInstCap, o, "units clamped to notional cap %.2f", o.NotionalCap)
		}
		if sized.Units == 0 || math.IsNaN(sized.Units) {
			r.warn(StageSize, CodeZeroUnits, o, "sizer produced no position")
			sized = sized.WithFlat()
		}
		out[i] = sized
	}
	return out
}

// stopDistance is the price distance to a sleeve-provided stop, or 0.
func stopDistance(o intent.OrderIntent, last float64) float64 {
	if o.Exit == nil || o.Exit.SL == nil {
		return 0
	}
	ref := last
	if o.Entry.Price != nil {
		ref = *o.Entry.Price
	}
	return math.Abs(ref - *o.Exit.SL)
}

func (r *run) applyCost(in []intent.OrderIntent) []intent.OrderIntent {
	out := make([]intent.OrderIntent, len(in))
	for i, o := range in {
		m := r.p.costs.GetMultiplierForTrade(o.Symbol, cost.TradeContext{TS: o.TS, Units: o.Units})
		out[i] = o.WithCostMultiplier(m).WithUnits(o.Units * cost.SizeFactor(m))
	}
	return out
}

func (r *run) planExits(snap market.Snapshot, in []intent.OrderIntent) []intent.OrderIntent {
	if r.p.planner == nil {
		return in
	}
	out := make([]intent.OrderIntent, len(in))
	for i, o := range in {
		out[i] = o
		if o.IsFlat() {
			continue
		}
		ser, _ := snap.Get(o.Symbol)
		last, _ := ser.Last()
		plan, err := r.p.planner.ProposeExitPlan(exitFeatures(ser), o.Symbol)
		if err != nil {
			r.warn(StageExits, CodeNoExitPlan, o, "%v", err)
			continue
		}
		ref := last.Close
		if o.Entry.Price != nil {
			ref = *o.Entry.Price
		}
		out[i] = exits.Apply(o, plan, ref, market.PipSize(o.Symbol))
	}
	return out
}

func exitFeatures(ser market.Series) map[string]float64 {
	f := map[string]float64{}
	if last, ok := ser.Last(); ok {
		f["close"] = last.Close
	}
	for i := len(ser.Vol) - 1; i >= 0; i-- {
		if v := ser.Vol[i]; v > 0 && !math.IsInf(v, 0) {
			f["vol"] = v
			break
		}
	}
	return f
}

func (r *run) gate(in []intent.OrderIntent) []intent.OrderIntent {
	if !r.p.hazard.Active() {
		return in
	}
	st := r.p.hazard.State()
	out, _ := r.p.hazard.Gate(in)
	for i, o := range in {
		if !o.IsFlat() && out[i].IsFlat() {
			r.warn(StageHazard, CodeHazardActive, o, "regime %s score %.2f", st.Reason, st.Score)
		}
	}
	return out
}

// CostMetrics derives selection metrics from the cost model: liquidity from
// the calibrated band, the multiplier itself, and a score that prefers
// cheaper symbols. Symbols without calibration count as NORMAL at 1.0.
func CostMetrics(m *cost.Model) MetricsFunc {
	return func(snap market.Snapshot) map[string]selection.Metrics {
		out := map[string]selection.Metrics{}
		for _, sym := range snap.Symbols() {
			band := cost.Normal
			if s, ok := m.Snapshot(sym); ok {
				band = s.LiquidityBand
			}
			mult := m.GetMultiplierForTrade(sym, cost.TradeContext{TS: snap.AsOf})
			out[sym] = selection.Metrics{
				Liquidity:      band.Score(),
				CostMultiplier: mult,
				Score:          1 / mult,
			}
		}
		return out
	}
}
