package cli

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradefuse/config"
	"github.com/rustyeddy/tradefuse/features"
	"github.com/rustyeddy/tradefuse/indicators"
	"github.com/rustyeddy/tradefuse/market"
)

const (
	volNamespace = "realized_vol"
	volVersion   = "v1"
)

var volSchema = []features.Field{
	{Name: "time", Kind: features.KindTime},
	{Name: "vol", Kind: features.KindFloat},
}

// loadSeries reads symbol's stored bars up to asOf (all bars when asOf is
// zero) and attaches its realized-vol series.
func loadSeries(ctx context.Context, st *features.Store, symbol string, asOf time.Time, vc config.VolConfig) (market.Series, error) {
	df, err := st.GetPrices(ctx, symbol)
	if err != nil {
		return market.Series{}, err
	}
	candles, err := market.FromFrame(symbol, df)
	if err != nil {
		return market.Series{}, err
	}
	if !asOf.IsZero() {
		n := 0
		for n < len(candles) && !candles[n].Time.After(asOf) {
			n++
		}
		candles = candles[:n]
	}
	if len(candles) == 0 {
		return market.Series{}, fmt.Errorf("prices %s: no bars at or before %s: %w", symbol, asOf.Format(time.RFC3339), features.ErrNotFound)
	}
	vol, err := volSeries(st, symbol, candles, vc)
	if err != nil {
		return market.Series{}, err
	}
	return market.Series{Symbol: symbol, Candles: candles, Vol: vol}, nil
}

// volSeries returns the realized vol of candles, cached in the feature store
// under a key derived from the symbol, the bars themselves and the vol
// settings. A corrected bar changes the key.
func volSeries(st *features.Store, symbol string, candles []market.Candle, vc config.VolConfig) ([]float64, error) {
	params := features.Params{
		"symbol":           symbol,
		"window":           vc.Window,
		"periods_per_year": vc.PeriodsPerYear,
		"first":            candles[0].Time.UTC().Format(time.RFC3339Nano),
		"last":             candles[len(candles)-1].Time.UTC().Format(time.RFC3339Nano),
		"rows":             len(candles),
		"bars_sha256":      barsDigest(candles),
	}
	f, _, err := st.GetOrCompute(volNamespace, volSchema, params, volVersion, func() (features.Frame, error) {
		s := market.Series{Candles: candles}
		ts := make([]time.Time, len(candles))
		for i, c := range candles {
			ts[i] = c.Time
		}
		vol := indicators.RealizedVol(s.Closes(), vc.Window, vc.PeriodsPerYear)
		return features.NewFrame(features.TimeColumn("time", ts), features.FloatColumn("vol", vol))
	})
	if err != nil {
		return nil, fmt.Errorf("realized vol %s: %w", symbol, err)
	}
	col, _ := f.Column("vol")
	return col.Floats, nil
}

// barsDigest hashes the timestamps and closes the vol series is computed from.
func barsDigest(candles []market.Candle) string {
	h := sha256.New()
	var buf [16]byte
	for _, c := range candles {
		binary.LittleEndian.PutUint64(buf[:8], uint64(c.Time.UTC().UnixNano()))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(c.Close))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// loadSnapshot builds the market snapshot for symbols. A symbol that cannot
// be loaded is logged and left out, so the pipeline reports it as missing data
// while the other symbols still run. A zero asOf takes the latest bar across
// the loaded symbols.
func loadSnapshot(ctx context.Context, st *features.Store, symbols []string, asOf time.Time, vc config.VolConfig, log zerolog.Logger) (market.Snapshot, error) {
	snap := market.Snapshot{AsOf: asOf, Series: map[string]market.Series{}}
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return market.Snapshot{}, err
		}
		s, err := loadSeries(ctx, st, sym, asOf, vc)
		if errors.Is(err, features.ErrNotFound) {
			log.Warn().Str("symbol", sym).Err(err).Msg("no prices")
			continue
		}
		if err != nil {
			log.Error().Str("symbol", sym).Err(err).Msg("symbol skipped")
			continue
		}
		snap.Series[sym] = s
		if last, ok := s.Last(); ok && asOf.IsZero() && last.Time.After(snap.AsOf) {
			snap.AsOf = last.Time
		}
	}
	if snap.AsOf.IsZero() {
		return market.Snapshot{}, fmt.Errorf("no prices for %v: %w", symbols, features.ErrNotFound)
	}
	return snap, nil
}
