// Package sleeves holds the signal generators that feed a pipeline run and
// the registry that builds them from configuration.
package sleeves

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
)

// Sleeve turns a market snapshot into tentative intents. Implementations must
// not keep state between calls that changes their output for the same
// snapshot.
type Sleeve interface {
	Signals(snap market.Snapshot) ([]intent.OrderIntent, error)
}

// Func adapts a plain function to Sleeve.
type Func func(snap market.Snapshot) ([]intent.OrderIntent, error)

func (f Func) Signals(snap market.Snapshot) ([]intent.OrderIntent, error) { return f(snap) }

// Spec configures one sleeve.
type Spec struct {
	Kind      string   `yaml:"kind" json:"kind" validate:"required"`
	Tag       string   `yaml:"tag" json:"tag" validate:"required"`
	Priority  int      `yaml:"priority" json:"priority"`
	Symbols   []string `yaml:"symbols,omitempty" json:"symbols,omitempty"`
	Fast      int      `yaml:"fast" json:"fast" default:"12"`
	Slow      int      `yaml:"slow" json:"slow" default:"26"`
	MinSpread float64  `yaml:"min_spread" json:"min_spread"`
	CrossOnly bool     `yaml:"cross_only" json:"cross_only"`
}

// Factory builds a sleeve from its spec.
type Factory func(Spec) (Sleeve, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a sleeve kind available to Build. Registering a kind twice
// replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[kind] = f
}

// Build constructs the sleeve named by spec.Kind.
func Build(spec Spec) (Sleeve, error) {
	mu.RLock()
	f, ok := registry[spec.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sleeve kind %q (have %v)", spec.Kind, Kinds())
	}
	s, err := f(spec)
	if err != nil {
		return nil, fmt.Errorf("build sleeve %s (%s): %w", spec.Tag, spec.Kind, err)
	}
	return s, nil
}

// BuildAll builds every spec, keyed by tag.
func BuildAll(specs []Spec) (map[string]Sleeve, error) {
	out := make(map[string]Sleeve, len(specs))
	for _, sp := range specs {
		if _, dup := out[sp.Tag]; dup {
			return nil, fmt.Errorf("duplicate sleeve tag %q", sp.Tag)
		}
		s, err := Build(sp)
		if err != nil {
			return nil, err
		}
		out[sp.Tag] = s
	}
	return out, nil
}

// Kinds lists the registered sleeve kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register("noop", func(Spec) (Sleeve, error) { return Noop{}, nil })
	Register("ema_cross", func(s Spec) (Sleeve, error) { return NewEMACross(s) })
	Register("sma_cross", func(s Spec) (Sleeve, error) { return NewSMACross(s) })
}

// Noop never emits an intent.
type Noop struct{}

func (Noop) Signals(market.Snapshot) ([]intent.OrderIntent, error) { return nil, nil }
