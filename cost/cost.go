// Package cost holds per-symbol transaction-cost multiplier snapshots.
//
// Snapshots are produced by an offline calibration job and read at decision
// time. Each symbol has its own versioned store under the model directory.
package cost

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/tradefuse/pkg/snapshot"
)

// DefaultMultiplier is used for symbols without calibration data.
const DefaultMultiplier = 1.0

const kind = "cost"

// symbolPattern keeps snapshot directories inside the model directory.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// ErrNotFound is returned by LoadLatest when no symbol has a snapshot.
var ErrNotFound = snapshot.ErrNotFound

type LiquidityBand string

const (
	Thin   LiquidityBand = "THIN"
	Normal LiquidityBand = "NORMAL"
	Deep   LiquidityBand = "DEEP"
)

func ParseBand(s string) (LiquidityBand, error) {
	switch b := LiquidityBand(strings.ToUpper(strings.TrimSpace(s))); b {
	case Thin, Normal, Deep:
		return b, nil
	default:
		return "", fmt.Errorf("unknown liquidity band %q (want THIN, NORMAL or DEEP)", s)
	}
}

// Score ranks a band for universe selection: THIN 0.25, NORMAL 0.5, DEEP 1.
// Unknown bands score as NORMAL.
func (b LiquidityBand) Score() float64 {
	switch b {
	case Thin:
		return 0.25
	case Deep:
		return 1
	default:
		return 0.5
	}
}

type Snapshot struct {
	Symbol         string        `json:"symbol"`
	LiquidityBand  LiquidityBand `json:"liquidity_band"`
	CostMultiplier float64       `json:"cost_multiplier"`
	Note           string        `json:"note"`
	CreatedAt      time.Time     `json:"created_at"`
	Version        int64         `json:"version"`
}

// TradeContext describes the trade being costed. The default model prices by
// symbol only.
type TradeContext struct {
	TS    time.Time
	Units float64
}

// Model resolves the latest multiplier per symbol. A nil *Model is valid and
// prices every trade at DefaultMultiplier.
type Model struct {
	snapshots map[string]Snapshot
}

// NormalizeSymbol maps "eur/usd" and "EUR_USD" to the same key.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", "_"))
}

// WriteCostSnapshot appends a new snapshot for symbol and publishes it as the
// symbol's latest. It returns the path of the new version file.
func WriteCostSnapshot(outDir, symbol string, band LiquidityBand, multiplier float64, note string) (string, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return "", errors.New("cost snapshot: symbol is required")
	}
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("cost snapshot: invalid symbol %q", symbol)
	}
	if !(multiplier > 0) {
		return "", fmt.Errorf("cost snapshot: multiplier must be > 0, got %v", multiplier)
	}
	if _, err := ParseBand(string(band)); err != nil {
		return "", fmt.Errorf("cost snapshot: %w", err)
	}

	st := snapshot.Open(filepath.Join(outDir, sym), kind)
	created := time.Now().UTC()
	_, path, err := st.WriteVersioned(func(version int64) any {
		return Snapshot{
			Symbol:         sym,
			LiquidityBand:  band,
			CostMultiplier: multiplier,
			Note:           note,
			CreatedAt:      created,
			Version:        version,
		}
	})
	if err != nil {
		return "", fmt.Errorf("write cost snapshot %s: %w", sym, err)
	}
	return path, nil
}

// LoadLatest reads the latest snapshot of every symbol under dir.
func LoadLatest(dir string) (*Model, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cost model %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("read cost dir: %w", err)
	}

	m := &Model{snapshots: map[string]Snapshot{}}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var snap Snapshot
		_, err := snapshot.Open(filepath.Join(dir, e.Name()), kind).LoadLatest(&snap)
		if errors.Is(err, snapshot.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load cost snapshot %s: %w", e.Name(), err)
		}
		m.snapshots[NormalizeSymbol(snap.Symbol)] = snap
	}
	if len(m.snapshots) == 0 {
		return nil, fmt.Errorf("cost model %s: %w", dir, ErrNotFound)
	}
	return m, nil
}

// Snapshot returns the latest snapshot for symbol, if any.
func (m *Model) Snapshot(symbol string) (Snapshot, bool) {
	if m == nil {
		return Snapshot{}, false
	}
	s, ok := m.snapshots[NormalizeSymbol(symbol)]
	return s, ok
}

// Symbols lists the calibrated symbols.
func (m *Model) Symbols() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.snapshots))
	for s := range m.snapshots {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// GetMultiplierForTrade returns the latest calibrated multiplier for symbol,
// or DefaultMultiplier when the symbol has never been calibrated.
func (m *Model) GetMultiplierForTrade(symbol string, _ TradeContext) float64 {
	s, ok := m.Snapshot(symbol)
	if !ok || !(s.CostMultiplier > 0) {
		return DefaultMultiplier
	}
	return s.CostMultiplier
}

// SizeFactor is the unit scale applied for a multiplier. Costs can only
// shrink a position: multipliers below 1 leave the size unchanged.
func SizeFactor(multiplier float64) float64 {
	if !(multiplier > 1) {
		return 1
	}
	return 1 / multiplier
}
