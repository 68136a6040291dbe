// Package intent defines the OrderIntent record that sleeves emit and every
// pipeline stage transforms.
package intent

import (
	"fmt"
	"time"
)

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
	Flat  Side = "flat"
)

// Direction returns +1 for long, -1 for short and 0 for flat.
func (s Side) Direction() float64 {
	switch s {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

type EntryType string

const (
	Market EntryType = "market"
	Stop   EntryType = "stop"
	Limit  EntryType = "limit"
)

type Entry struct {
	Type  EntryType `json:"type" validate:"oneof=market stop limit"`
	Price *float64  `json:"price,omitempty"`
}

// Exit holds absolute exit prices and an optional bar-count time stop.
type Exit struct {
	TP      *float64 `json:"tp,omitempty"`
	SL      *float64 `json:"sl,omitempty"`
	TTLBars *int     `json:"ttl_bars,omitempty" validate:"omitempty,gte=0"`
}

// ExitPlan is the EV-optimal exit proposal attached by the exit planner.
type ExitPlan struct {
	TPPips        float64 `json:"tp_pips"`
	SLPips        float64 `json:"sl_pips"`
	ExpectedValue float64 `json:"expected_value"`
	TimeStopBars  int     `json:"time_stop_bars"`
}

// OrderIntent is an immutable trade proposal. Stages never mutate an intent
// in place; the With* helpers return a copy with one aspect replaced.
type OrderIntent struct {
	TS         time.Time `json:"ts"`
	Symbol     string    `json:"symbol" validate:"required"`
	Side       Side      `json:"side" validate:"oneof=long short flat"`
	Entry      Entry     `json:"entry"`
	Exit       *Exit     `json:"exit,omitempty"`
	Tag        string    `json:"tag" validate:"required"`
	Priority   int       `json:"priority"`
	Confidence float64   `json:"confidence" validate:"gte=0,lte=1"`

	// Filled in downstream.
	Units          float64   `json:"units"`
	NotionalCap    float64   `json:"notional_cap,omitempty"`
	CostMultiplier float64   `json:"cost_multiplier,omitempty"`
	Plan           *ExitPlan `json:"plan,omitempty"`
}

func (o OrderIntent) String() string {
	return fmt.Sprintf("%s %s %s units=%.2f conf=%.3f tag=%s prio=%d",
		o.TS.UTC().Format(time.RFC3339), o.Symbol, o.Side, o.Units, o.Confidence, o.Tag, o.Priority)
}

// IsFlat reports whether the intent carries no directional exposure.
func (o OrderIntent) IsFlat() bool { return o.Side == Flat }

func (o OrderIntent) clone() OrderIntent {
	c := o
	if o.Entry.Price != nil {
		p := *o.Entry.Price
		c.Entry.Price = &p
	}
	if o.Exit != nil {
		e := o.Exit.Clone()
		c.Exit = &e
	}
	if o.Plan != nil {
		p := *o.Plan
		c.Plan = &p
	}
	return c
}

// Clone returns a deep copy of e.
func (e Exit) Clone() Exit {
	c := Exit{}
	if e.TP != nil {
		v := *e.TP
		c.TP = &v
	}
	if e.SL != nil {
		v := *e.SL
		c.SL = &v
	}
	if e.TTLBars != nil {
		v := *e.TTLBars
		c.TTLBars = &v
	}
	return c
}

// WithConfidence returns a copy with confidence replaced.
func (o OrderIntent) WithConfidence(c float64) OrderIntent {
	n := o.clone()
	n.Confidence = c
	return n
}

// WithFlat returns a copy with no directional exposure. Units are zeroed so the
// flat-implies-unsized invariant holds for every suppressed intent.
func (o OrderIntent) WithFlat() OrderIntent {
	n := o.clone()
	n.Side = Flat
	n.Units = 0
	return n
}

func (o OrderIntent) WithUnits(u float64) OrderIntent {
	n := o.clone()
	if n.Side == Flat {
		u = 0
	}
	n.Units = u
	return n
}

func (o OrderIntent) WithNotionalCap(c float64) OrderIntent {
	n := o.clone()
	n.NotionalCap = c
	return n
}

func (o OrderIntent) WithCostMultiplier(m float64) OrderIntent {
	n := o.clone()
	n.CostMultiplier = m
	return n
}

// WithExit returns a copy carrying the exit prices and the plan they came from.
func (o OrderIntent) WithExit(e Exit, plan *ExitPlan) OrderIntent {
	n := o.clone()
	c := e.Clone()
	n.Exit = &c
	if plan != nil {
		p := *plan
		n.Plan = &p
	}
	return n
}

// Float is a small helper for building optional price fields.
func Float(v float64) *float64 { return &v }

// Int is a small helper for building optional bar counts.
func Int(v int) *int { return &v }
