package sleeves

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/tradefuse/indicators"
	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
)

// MACross goes long while a fast moving average of closes sits above a slow
// one and short while it sits below. With CrossOnly it only speaks on the bar
// where the relationship flips.
type MACross struct {
	spec    Spec
	kind    string
	average func(period int) indicators.Indicator
}

// NewEMACross builds the exponential-average cross (kind "ema_cross").
func NewEMACross(spec Spec) (*MACross, error) {
	return newMACross("ema_cross", spec, func(p int) indicators.Indicator { return indicators.NewEMA(p) })
}

// NewSMACross builds the simple-average cross (kind "sma_cross").
func NewSMACross(spec Spec) (*MACross, error) {
	return newMACross("sma_cross", spec, func(p int) indicators.Indicator { return indicators.NewMA(p) })
}

func newMACross(kind string, spec Spec, average func(int) indicators.Indicator) (*MACross, error) {
	if spec.Fast <= 0 || spec.Slow <= 0 {
		return nil, fmt.Errorf("%s periods must be > 0", kind)
	}
	if spec.Fast >= spec.Slow {
		return nil, fmt.Errorf("%s requires fast < slow, got %d >= %d", kind, spec.Fast, spec.Slow)
	}
	return &MACross{spec: spec, kind: kind, average: average}, nil
}

func (x *MACross) Name() string {
	return fmt.Sprintf("%s(%d,%d)", strings.ToUpper(x.kind), x.spec.Fast, x.spec.Slow)
}

func (x *MACross) Signals(snap market.Snapshot) ([]intent.OrderIntent, error) {
	symbols := x.spec.Symbols
	if len(symbols) == 0 {
		symbols = snap.Symbols()
	}

	var out []intent.OrderIntent
	for _, sym := range symbols {
		ser, ok := snap.Get(sym)
		if !ok || ser.Len() < x.spec.Slow+1 {
			continue
		}
		side, conf, ok := x.evaluate(ser)
		if !ok {
			continue
		}
		out = append(out, intent.OrderIntent{
			TS:         snap.AsOf,
			Symbol:     sym,
			Side:       side,
			Entry:      intent.Entry{Type: intent.Market},
			Tag:        x.spec.Tag,
			Priority:   x.spec.Priority,
			Confidence: conf,
		})
	}
	return out, nil
}

func (x *MACross) evaluate(ser market.Series) (intent.Side, float64, bool) {
	fast := indicators.Values(x.average(x.spec.Fast), ser.Candles)
	slow := indicators.Values(x.average(x.spec.Slow), ser.Candles)
	n := len(ser.Candles)

	diff := fast[n-1] - slow[n-1]
	prev := fast[n-2] - slow[n-2]
	if math.IsNaN(diff) || diff == 0 {
		return "", 0, false
	}
	if x.spec.MinSpread > 0 && math.Abs(diff) < x.spec.MinSpread {
		return "", 0, false
	}
	if x.spec.CrossOnly && (math.IsNaN(prev) || sign(prev) == sign(diff)) {
		return "", 0, false
	}

	side := intent.Long
	if diff < 0 {
		side = intent.Short
	}

	conf := 1.0
	if atr, err := indicators.ATRFunc(ser.Candles, x.spec.Slow); err == nil && atr > 0 {
		conf = math.Min(1, math.Abs(diff)/atr)
	}
	return side, conf, true
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
