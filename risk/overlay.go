// Package risk bounds portfolio exposure before sizing and converts netted
// intents into unit sizes.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/netting"
)

// ErrNonPositiveEquity is reported when an overlay is asked to cap intents
// against zero or negative equity.
var ErrNonPositiveEquity = errors.New("non-positive equity")

const (
	CodeNonPositiveEquity = "NON_POSITIVE_EQUITY"
	CodeMTDHard           = "MTD_HARD_LIMIT"
	CodeMTDSoft           = "MTD_SOFT_LIMIT"
	CodeCorrelation       = "CORRELATION_GUARD"
	CodeInstCap           = "INST_CAP"
)

// DefaultSoftScale is the confidence multiplier applied past the soft MTD
// limit when none is configured.
const DefaultSoftScale = 0.5

type Violation struct {
	Code   string
	Symbol string
	Tag    string
	Msg    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s/%s: %s", v.Code, v.Symbol, v.Tag, v.Msg)
}

// MTDLimits are month-to-date drawdown thresholds expressed as negative
// returns (-0.05 is a 5% drawdown). A zero threshold is disabled.
type MTDLimits struct {
	Soft      float64 `yaml:"soft" json:"soft" validate:"lte=0"`
	Hard      float64 `yaml:"hard" json:"hard" validate:"lte=0"`
	SoftScale float64 `yaml:"soft_scale" json:"soft_scale" validate:"gte=0,lte=1"`
}

// Overlay holds the portfolio-level caps. The zero value is PassThrough.
type Overlay struct {
	// InstCap is the maximum notional per instrument as a fraction of equity.
	InstCap float64 `yaml:"inst_cap" json:"inst_cap" validate:"gte=0"`
	// CorrGuard is the largest signed correlation exposure allowed between
	// two concurrently held symbols.
	CorrGuard     float64            `yaml:"corr_guard" json:"corr_guard" validate:"gte=0,lte=1"`
	MTD           MTDLimits          `yaml:"mtd" json:"mtd"`
	SleeveWeights map[string]float64 `yaml:"sleeve_weights" json:"sleeve_weights" validate:"dive,gte=0"`
}

// PassThrough leaves every intent untouched for positive equity.
var PassThrough = Overlay{}

// Pair names an ordered symbol pair.
type Pair struct{ A, B string }

// Correlations holds pairwise return correlations. Entries are not assumed
// symmetric; Lookup falls back to the reversed pair only when the pair itself
// is absent.
type Correlations map[Pair]float64

func (c Correlations) Lookup(a, b string) (float64, bool) {
	if v, ok := c[Pair{a, b}]; ok {
		return v, true
	}
	v, ok := c[Pair{b, a}]
	return v, ok
}

// Book is the account state the overlay caps against.
type Book struct {
	MTDReturn    float64
	Held         map[string]intent.Side
	Correlations Correlations
}

// ApplyCaps enforces the overlay on intents and returns the adjusted copies
// in input order together with every violation raised. Flattened intents
// stay in the output so the caller can report them.
func (ov Overlay) ApplyCaps(intents []intent.OrderIntent, equity float64, book Book) ([]intent.OrderIntent, []Violation) {
	out := make([]intent.OrderIntent, len(intents))
	var vs []Violation
	add := func(o intent.OrderIntent, code, msg string) {
		vs = append(vs, Violation{Code: code, Symbol: o.Symbol, Tag: o.Tag, Msg: msg})
	}

	if equity <= 0 || math.IsNaN(equity) {
		for i, o := range intents {
			out[i] = o.WithFlat()
			if !o.IsFlat() {
				add(o, CodeNonPositiveEquity, fmt.Sprintf("%v: equity %.2f", ErrNonPositiveEquity, equity))
			}
		}
		return out, vs
	}

	for i, o := range intents {
		if w, ok := ov.SleeveWeights[o.Tag]; ok {
			o = o.WithConfidence(clamp01(o.Confidence * w))
		}
		out[i] = o
	}

	for i, o := range out {
		if o.IsFlat() {
			continue
		}
		switch {
		case ov.MTD.Hard < 0 && book.MTDReturn <= ov.MTD.Hard:
			out[i] = o.WithFlat()
			add(o, CodeMTDHard, fmt.Sprintf("mtd %.4f <= hard %.4f", book.MTDReturn, ov.MTD.Hard))
		case ov.MTD.Soft < 0 && book.MTDReturn <= ov.MTD.Soft:
			scale := ov.MTD.SoftScale
			if scale == 0 {
				scale = DefaultSoftScale
			}
			out[i] = o.WithConfidence(clamp01(o.Confidence * scale))
			add(o, CodeMTDSoft, fmt.Sprintf("mtd %.4f <= soft %.4f, confidence x%.2f", book.MTDReturn, ov.MTD.Soft, scale))
		}
	}

	if ov.InstCap > 0 {
		limit := ov.InstCap * equity
		for i, o := range out {
			if !o.IsFlat() {
				out[i] = o.WithNotionalCap(limit)
			}
		}
	}

	if ov.CorrGuard > 0 {
		vs = append(vs, ov.guardCorrelation(out, book)...)
	}
	return out, vs
}

// guardCorrelation flattens, in place, intents whose correlation exposure
// against the book or an already accepted intent at the same timestamp
// exceeds the guard.
func (ov Overlay) guardCorrelation(out []intent.OrderIntent, book Book) []Violation {
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return netting.Less(out[order[a]], out[order[b]]) })

	held := make([]string, 0, len(book.Held))
	for sym := range book.Held {
		held = append(held, sym)
	}
	sort.Strings(held)

	var vs []Violation
	accepted := map[int64][]intent.OrderIntent{}
	for _, i := range order {
		o := out[i]
		if o.IsFlat() {
			continue
		}
		dir := o.Side.Direction()
		ts := o.TS.UnixNano()

		var against string
		var exposure float64
		for _, sym := range held {
			side := book.Held[sym]
			if sym == o.Symbol || side == intent.Flat {
				continue
			}
			if c, ok := book.Correlations.Lookup(o.Symbol, sym); ok {
				if e := c * dir * side.Direction(); e > ov.CorrGuard && e > exposure {
					against, exposure = sym, e
				}
			}
		}
		for _, a := range accepted[ts] {
			if a.Symbol == o.Symbol {
				continue
			}
			if c, ok := book.Correlations.Lookup(o.Symbol, a.Symbol); ok {
				if e := c * dir * a.Side.Direction(); e > ov.CorrGuard && e > exposure {
					against, exposure = a.Symbol, e
				}
			}
		}

		if against != "" {
			out[i] = o.WithFlat()
			vs = append(vs, Violation{
				Code:   CodeCorrelation,
				Symbol: o.Symbol,
				Tag:    o.Tag,
				Msg:    fmt.Sprintf("exposure %.3f against %s exceeds guard %.3f", exposure, against, ov.CorrGuard),
			})
			continue
		}
		accepted[ts] = append(accepted[ts], o)
	}
	return vs
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
