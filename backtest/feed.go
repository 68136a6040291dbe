package backtest

import (
	"sort"
	"time"

	"github.com/rustyeddy/tradefuse/market"
)

// Feed yields market snapshots in time order. Implementations should be
// deterministic and return (ok=false, err=nil) at the end.
type Feed interface {
	Next() (snap market.Snapshot, ok bool, err error)
	Close() error
}

// SeriesFeed replays fully loaded series one step per distinct bar time.
// Each snapshot exposes, per symbol, only the bars (and vol values) at or
// before the step time, so sleeves never see the future.
//
// It optionally limits steps to [from, to) and skips the first warmup bar
// times.
type SeriesFeed struct {
	series map[string]market.Series
	times  []time.Time
	i      int
}

func NewSeriesFeed(series []market.Series, from, to time.Time, warmup int) *SeriesFeed {
	seen := map[int64]bool{}
	var times []time.Time
	byName := make(map[string]market.Series, len(series))
	for _, s := range series {
		byName[s.Symbol] = s
		for _, c := range s.Candles {
			k := c.Time.UnixNano()
			if seen[k] {
				continue
			}
			seen[k] = true
			times = append(times, c.Time)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	if warmup > len(times) {
		warmup = len(times)
	}
	if warmup > 0 {
		times = times[warmup:]
	}

	var kept []time.Time
	for _, t := range times {
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !to.IsZero() && !t.Before(to) {
			continue
		}
		kept = append(kept, t)
	}
	return &SeriesFeed{series: byName, times: kept}
}

// Steps returns the number of snapshots the feed yields in total.
func (f *SeriesFeed) Steps() int { return len(f.times) }

func (f *SeriesFeed) Next() (market.Snapshot, bool, error) {
	if f.i >= len(f.times) {
		return market.Snapshot{}, false, nil
	}
	t := f.times[f.i]
	f.i++

	snap := market.Snapshot{AsOf: t, Series: make(map[string]market.Series, len(f.series))}
	for sym, s := range f.series {
		n := sort.Search(len(s.Candles), func(k int) bool { return s.Candles[k].Time.After(t) })
		if n == 0 {
			continue
		}
		cut := market.Series{Symbol: sym, Candles: s.Candles[:n:n]}
		if len(s.Vol) >= n {
			cut.Vol = s.Vol[:n:n]
		}
		snap.Series[sym] = cut
	}
	return snap, true, nil
}

func (f *SeriesFeed) Close() error { return nil }
