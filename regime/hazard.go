// Package regime detects volatility shocks and gates new trade intents while
// one is in progress.
package regime

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/pkg/snapshot"
)

const kind = "hazard"

// ErrNotFound is returned by LoadLatest when no status has been saved.
var ErrNotFound = snapshot.ErrNotFound

type Reason string

const (
	ReasonNone             Reason = "none"
	ReasonVolSpike         Reason = "vol_spike"
	ReasonInsufficientData Reason = "insufficient_data"
)

type State struct {
	Score      float64   `json:"score"`
	Hazard     bool      `json:"hazard"`
	Reason     Reason    `json:"reason"`
	ObservedAt time.Time `json:"observed_at"`
}

func (s State) String() string {
	st := "calm"
	if s.Hazard {
		st = "hazard"
	}
	return fmt.Sprintf("%s (%s) score=%.3f at %s", st, s.Reason, s.Score, s.ObservedAt.UTC().Format(time.RFC3339))
}

type Config struct {
	// Threshold is the score above which calm turns into hazard.
	Threshold float64 `json:"threshold" yaml:"threshold" default:"2.0" validate:"gt=0"`
	// ExitThreshold is the score at or below which hazard returns to calm.
	// Zero means Threshold (no hysteresis).
	ExitThreshold float64 `json:"exit_threshold" yaml:"exit_threshold" validate:"gte=0"`
	// Window bounds the trailing observations used for mean/stddev; 0 uses all.
	Window          int           `json:"window" yaml:"window" validate:"gte=0"`
	MinObservations int           `json:"min_observations" yaml:"min_observations" default:"5" validate:"gte=2"`
	HalfLife        time.Duration `json:"half_life" yaml:"half_life" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{Threshold: 2.0, MinObservations: 5}
}

func (c Config) exit() float64 {
	if c.ExitThreshold <= 0 || c.ExitThreshold > c.Threshold {
		return c.Threshold
	}
	return c.ExitThreshold
}

// Hazard is a two-state (calm/hazard) detector. It is not safe for
// concurrent mutation; the pipeline only reads it.
type Hazard struct {
	cfg   Config
	state State
	now   func() time.Time
}

func New(cfg Config) *Hazard {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.MinObservations < 2 {
		cfg.MinObservations = DefaultConfig().MinObservations
	}
	return &Hazard{cfg: cfg, state: State{Reason: ReasonNone}, now: time.Now}
}

func (h *Hazard) State() State { return h.state }

// Active reports whether new intents must be suppressed.
func (h *Hazard) Active() bool { return h != nil && h.state.Hazard }

// Score standardizes the last finite observation of series against the
// trailing observations before it. ok is false when there are fewer than
// minObs finite points.
func Score(series []float64, window, minObs int) (score float64, ok bool) {
	finite := make([]float64, 0, len(series))
	for _, x := range series {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			finite = append(finite, x)
		}
	}
	if len(finite) < minObs || len(finite) < 2 {
		return 0, false
	}
	last := finite[len(finite)-1]
	trail := finite[:len(finite)-1]
	if window > 0 && len(trail) > window {
		trail = trail[len(trail)-window:]
	}

	mean := 0.0
	for _, x := range trail {
		mean += x
	}
	mean /= float64(len(trail))

	variance := 0.0
	for _, x := range trail {
		variance += (x - mean) * (x - mean)
	}
	if len(trail) > 1 {
		variance /= float64(len(trail) - 1)
	}
	std := math.Sqrt(variance)

	diff := last - mean
	if diff == 0 {
		return 0, true
	}
	// A flat history makes any move infinitely surprising; keep the score
	// finite so it survives JSON.
	if std < 1e-12 {
		std = 1e-12
	}
	return diff / std, true
}

// UpdateFromVolSeries scores the latest volatility observation and moves the
// state machine. at stamps the observation.
func (h *Hazard) UpdateFromVolSeries(series []float64, at time.Time) State {
	if at.IsZero() {
		at = h.now().UTC()
	}
	score, ok := Score(series, h.cfg.Window, h.cfg.MinObservations)
	if !ok {
		h.state = State{Score: 0, Hazard: false, Reason: ReasonInsufficientData, ObservedAt: at}
		return h.state
	}

	switch {
	case score > h.cfg.Threshold:
		h.state = State{Score: score, Hazard: true, Reason: ReasonVolSpike, ObservedAt: at}
	case h.state.Hazard && score > h.cfg.exit():
		h.state = State{Score: score, Hazard: true, Reason: ReasonVolSpike, ObservedAt: at}
	default:
		h.state = State{Score: score, Hazard: false, Reason: ReasonNone, ObservedAt: at}
	}
	return h.state
}

// SaveStatus publishes the current state as the latest status in dir.
func (h *Hazard) SaveStatus(dir string) (string, error) {
	_, path, err := snapshot.Open(dir, kind).Write(h.state)
	if err != nil {
		return "", fmt.Errorf("save hazard status: %w", err)
	}
	return path, nil
}

// LoadLatest restores the latest saved status. Hazard and reason come back
// exactly; a positive score decays by cfg.HalfLife for the time elapsed since
// the observation, so a reload never reports a higher score than was saved.
func LoadLatest(dir string, cfg Config) (*Hazard, error) {
	return loadLatest(dir, cfg, time.Now)
}

func loadLatest(dir string, cfg Config, now func() time.Time) (*Hazard, error) {
	var st State
	if _, err := snapshot.Open(dir, kind).LoadLatest(&st); err != nil {
		return nil, fmt.Errorf("load hazard status: %w", err)
	}
	h := New(cfg)
	h.now = now
	st.Score = decay(st.Score, now().Sub(st.ObservedAt), cfg.HalfLife)
	h.state = st
	return h, nil
}

func decay(score float64, elapsed, halfLife time.Duration) float64 {
	if score <= 0 || halfLife <= 0 || elapsed <= 0 {
		return score
	}
	f := math.Pow(0.5, float64(elapsed)/float64(halfLife))
	return score * f
}

// Gate forces every directional intent flat while the hazard is active and
// returns the symbols it suppressed. A nil or calm detector passes intents
// through untouched.
func (h *Hazard) Gate(intents []intent.OrderIntent) ([]intent.OrderIntent, []string) {
	if !h.Active() {
		return intents, nil
	}
	out := make([]intent.OrderIntent, 0, len(intents))
	var suppressed []string
	for _, o := range intents {
		if !o.IsFlat() {
			suppressed = append(suppressed, o.Symbol)
			o = o.WithFlat()
		}
		out = append(out, o)
	}
	return out, suppressed
}
