// Package journal records pipeline runs, the intents they handed off and the
// warnings they raised, and renders them for review.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/pipeline"
)

var ErrNotFound = errors.New("journal: not found")

// Run is the summary row of one pipeline run.
type Run struct {
	RunID        string
	AsOf         time.Time
	CreatedAt    time.Time
	Intents      int
	Directional  int
	Warnings     int
	Hazard       bool
	HazardScore  float64
	HazardReason string
}

// Decision is one intent handed off by a run, in hand-off order.
type Decision struct {
	RunID  string
	Seq    int
	Intent intent.OrderIntent
}

// WarningRecord is one pipeline warning, in the order it was raised.
type WarningRecord struct {
	RunID string
	Seq   int
	pipeline.Warning
}

type Journal interface {
	RecordRun(ctx context.Context, res pipeline.Result) error
	Close() error
}

// Summarize builds the run row for res.
func Summarize(res pipeline.Result, created time.Time) Run {
	return Run{
		RunID:        res.RunID,
		AsOf:         res.AsOf,
		CreatedAt:    created,
		Intents:      len(res.Intents),
		Directional:  len(res.Directional()),
		Warnings:     len(res.Warnings),
		Hazard:       res.Hazard.Hazard,
		HazardScore:  res.Hazard.Score,
		HazardReason: string(res.Hazard.Reason),
	}
}
