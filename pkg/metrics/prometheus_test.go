package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := New(prometheus.NewRegistry())
	r.RecordIntentsIn("trend", 3)
	r.RecordIntentOut("long")
	r.RecordIntentOut("long")
	r.RecordWarning("overlay", "MTD_HARD_LIMIT")
	r.RecordRun(50 * time.Millisecond)
	r.RecordHazard(true)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.intentsIn.WithLabelValues("trend")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.intentsOut.WithLabelValues("long")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.warnings.WithLabelValues("overlay", "MTD_HARD_LIMIT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.hazard))
	assert.Equal(t, 1, testutil.CollectAndCount(r.runDuration))
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordIntentsIn("x", 1)
		r.RecordIntentOut("long")
		r.RecordWarning("a", "b")
		r.RecordRun(time.Second)
		r.RecordHazard(false)
	})
}
