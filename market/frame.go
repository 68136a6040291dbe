package market

import (
	"time"

	"github.com/rustyeddy/tradefuse/features"
)

// ToFrame lays candles out as a price frame accepted by
// features.Store.UpsertPrices.
func ToFrame(candles []Candle) features.Frame {
	n := len(candles)
	ts := make([]time.Time, n)
	o, h, l, c, v := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, k := range candles {
		ts[i], o[i], h[i], l[i], c[i], v[i] = k.Time, k.Open, k.High, k.Low, k.Close, k.Volume
	}
	return features.Frame{Columns: []features.Column{
		features.TimeColumn("time", ts),
		features.FloatColumn("open", o),
		features.FloatColumn("high", h),
		features.FloatColumn("low", l),
		features.FloatColumn("close", c),
		features.FloatColumn("volume", v),
	}}
}

// FromFrame converts a price frame back into candles. volume is optional.
func FromFrame(source string, df features.Frame) ([]Candle, error) {
	if err := features.CheckColumns(source, df, features.PriceSchema); err != nil {
		return nil, err
	}
	if _, err := features.NewFrame(df.Columns...); err != nil {
		return nil, err
	}
	ts, _ := df.Column("time")
	o, _ := df.Column("open")
	h, _ := df.Column("high")
	l, _ := df.Column("low")
	c, _ := df.Column("close")
	v, hasVol := df.Column("volume")
	hasVol = hasVol && v.Kind == features.KindFloat

	out := make([]Candle, df.Len())
	for i := range out {
		out[i] = Candle{Time: ts.Times[i], Open: o.Floats[i], High: h.Floats[i], Low: l.Floats[i], Close: c.Floats[i]}
		if hasVol {
			out[i].Volume = v.Floats[i]
		}
	}
	return out, nil
}
