// Package netting resolves the intents of all sleeves into at most one intent
// per (timestamp, symbol).
package netting

import (
	"sort"

	"github.com/rustyeddy/tradefuse/intent"
)

type key struct {
	ts     int64
	symbol string
}

// Less is the canonical ordering: timestamp ascending, priority descending.
// Symbol and tag only order what priority leaves tied.
func Less(a, b intent.OrderIntent) bool {
	if !a.TS.Equal(b.TS) {
		return a.TS.Before(b.TS)
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.Tag < b.Tag
}

// ToNet keeps the highest-priority intent per (timestamp, symbol) and drops
// the rest. The input slice is not modified; the result is in canonical order.
//
// The full intent set for a timestamp must be present: netting a partial set
// can keep an intent a later, higher-priority one would have replaced.
func ToNet(intents []intent.OrderIntent) []intent.OrderIntent {
	kept, _ := Net(intents)
	return kept
}

// Net is ToNet that also returns every discarded intent, in canonical order.
// len(kept)+len(dropped) always equals len(intents).
func Net(intents []intent.OrderIntent) (kept, dropped []intent.OrderIntent) {
	sorted := make([]intent.OrderIntent, len(intents))
	copy(sorted, intents)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	seen := make(map[key]struct{}, len(sorted))
	kept = make([]intent.OrderIntent, 0, len(sorted))
	for _, o := range sorted {
		k := key{ts: o.TS.UTC().UnixNano(), symbol: o.Symbol}
		if _, dup := seen[k]; dup {
			dropped = append(dropped, o)
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, o)
	}
	return kept, dropped
}
