// Package metrics records pipeline activity in Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder counts intents and warnings per run. A nil *Recorder records
// nothing.
type Recorder struct {
	intentsIn   *prometheus.CounterVec
	intentsOut  *prometheus.CounterVec
	warnings    *prometheus.CounterVec
	runDuration prometheus.Histogram
	hazard      prometheus.Gauge
}

// New registers the pipeline metrics with reg. Pass prometheus.NewRegistry()
// in tests so recorders do not collide.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		intentsIn: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradefuse_intents_in_total",
				Help: "Intents emitted by sleeves",
			},
			[]string{"sleeve"},
		),
		intentsOut: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradefuse_intents_out_total",
				Help: "Final intents handed off, by side",
			},
			[]string{"side"},
		),
		warnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradefuse_warnings_total",
				Help: "Pipeline warnings by stage and code",
			},
			[]string{"stage", "code"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradefuse_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.DefBuckets,
		}),
		hazard: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradefuse_hazard_active",
			Help: "1 while the regime hazard gate is active",
		}),
	}
}

func (r *Recorder) RecordIntentsIn(sleeve string, n int) {
	if r == nil {
		return
	}
	r.intentsIn.WithLabelValues(sleeve).Add(float64(n))
}

func (r *Recorder) RecordIntentOut(side string) {
	if r == nil {
		return
	}
	r.intentsOut.WithLabelValues(side).Inc()
}

func (r *Recorder) RecordWarning(stage, code string) {
	if r == nil {
		return
	}
	r.warnings.WithLabelValues(stage, code).Inc()
}

func (r *Recorder) RecordRun(d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordHazard(active bool) {
	if r == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	r.hazard.Set(v)
}
