package intent

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() OrderIntent {
	return OrderIntent{
		TS:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Symbol:     "EUR_USD",
		Side:       Long,
		Entry:      Entry{Type: Market},
		Tag:        "ema",
		Priority:   10,
		Confidence: 0.5,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(o *OrderIntent)
		field  string
	}{
		{"valid", func(o *OrderIntent) {}, ""},
		{"confidence above one", func(o *OrderIntent) { o.Confidence = 1.2 }, "confidence"},
		{"negative confidence", func(o *OrderIntent) { o.Confidence = -0.1 }, "confidence"},
		{"nan confidence", func(o *OrderIntent) { o.Confidence = math.NaN() }, "confidence"},
		{"missing symbol", func(o *OrderIntent) { o.Symbol = "" }, "symbol"},
		{"missing tag", func(o *OrderIntent) { o.Tag = "" }, "tag"},
		{"unknown side", func(o *OrderIntent) { o.Side = "sideways" }, "side"},
		{"zero ts", func(o *OrderIntent) { o.TS = time.Time{} }, "ts"},
		{"limit without price", func(o *OrderIntent) { o.Entry = Entry{Type: Limit} }, "entry.price"},
		{"negative ttl", func(o *OrderIntent) { o.Exit = &Exit{TTLBars: Int(-1)} }, "ttlbars"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := sample()
			tt.mutate(&o)
			err := o.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Error(), tt.field)
		})
	}
}

func TestWithHelpersDoNotMutate(t *testing.T) {
	t.Parallel()

	o := sample()
	o.Entry.Price = Float(1.1)
	o.Exit = &Exit{SL: Float(1.09)}

	c := o.WithConfidence(0.9)
	*c.Entry.Price = 2
	*c.Exit.SL = 3

	assert.Equal(t, 0.5, o.Confidence)
	assert.Equal(t, 1.1, *o.Entry.Price)
	assert.Equal(t, 1.09, *o.Exit.SL)
	assert.Equal(t, 0.9, c.Confidence)
}

func TestFlatIsNeverSized(t *testing.T) {
	t.Parallel()

	o := sample().WithUnits(1000)
	assert.Equal(t, 1000.0, o.Units)

	f := o.WithFlat()
	assert.True(t, f.IsFlat())
	assert.Zero(t, f.Units)
	assert.Zero(t, f.WithUnits(500).Units)
}

func TestSideDirection(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Long.Direction())
	assert.Equal(t, -1.0, Short.Direction())
	assert.Equal(t, 0.0, Flat.Direction())
}
