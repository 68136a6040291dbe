// Package backtest replays stored history through the decision pipeline one
// bar at a time.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/journal"
	"github.com/rustyeddy/tradefuse/pipeline"
	"github.com/rustyeddy/tradefuse/regime"
)

// Runner drives a pipeline forward using a feed.
type Runner struct {
	Pipeline *pipeline.Pipeline
	Feed     Feed
	Account  pipeline.Account

	// Journal, when set, records every run.
	Journal journal.Journal

	// Hazard, when set, is updated from HazardSymbol's vol series before
	// each step. It should be the detector the pipeline gates with.
	Hazard       *regime.Hazard
	HazardSymbol string

	Log zerolog.Logger
}

type Result struct {
	Runs        int
	Intents     int
	Directional int
	Warnings    int
	HazardSteps int
	BySide      map[intent.Side]int
	Start       time.Time
	End         time.Time
}

// Run executes the replay loop:
//  1. read the next snapshot
//  2. update the hazard detector
//  3. run the pipeline and journal the result
//
// Cancelling ctx stops the loop between steps.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Pipeline == nil {
		return Result{}, fmt.Errorf("backtest: Pipeline is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	if r.Hazard != nil && r.HazardSymbol == "" {
		return Result{}, fmt.Errorf("backtest: HazardSymbol is required with Hazard")
	}
	defer r.Feed.Close()

	res := Result{BySide: map[intent.Side]int{}}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		snap, ok, err := r.Feed.Next()
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}
		if res.Start.IsZero() {
			res.Start = snap.AsOf
		}
		res.End = snap.AsOf

		if r.Hazard != nil {
			if ser, ok := snap.Get(r.HazardSymbol); ok {
				r.Hazard.UpdateFromVolSeries(ser.Vol, snap.AsOf)
			}
		}

		out, err := r.Pipeline.Run(ctx, snap, r.Account)
		if err != nil {
			return res, err
		}
		if r.Journal != nil {
			if err := r.Journal.RecordRun(ctx, out); err != nil {
				return res, err
			}
		}

		res.Runs++
		res.Intents += len(out.Intents)
		res.Warnings += len(out.Warnings)
		if out.Hazard.Hazard {
			res.HazardSteps++
		}
		for _, o := range out.Intents {
			res.BySide[o.Side]++
			if !o.IsFlat() {
				res.Directional++
			}
		}
	}

	r.Log.Info().
		Int("runs", res.Runs).
		Int("intents", res.Intents).
		Int("directional", res.Directional).
		Int("warnings", res.Warnings).
		Int("hazard_steps", res.HazardSteps).
		Time("start", res.Start).
		Time("end", res.End).
		Msg("backtest complete")
	return res, nil
}
