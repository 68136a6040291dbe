package market

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradefuse/features"
)

// Dukascopy exports stamp bars in EST without daylight saving.
var estNoDST = time.FixedZone("EST", -5*60*60)

const dukasLayout = "20060102 150405"

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// ReadStats counts what a CSV read skipped.
type ReadStats struct {
	Rows       int
	Duplicates int
	BadLines   int
}

func (s ReadStats) String() string {
	return fmt.Sprintf("rows=%d duplicates=%d bad=%d", s.Rows, s.Duplicates, s.BadLines)
}

// ReadCandlesFile reads a candle CSV from path.
func ReadCandlesFile(path string) ([]Candle, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, err
	}
	defer f.Close()
	return ReadCandles(f, path)
}

// ReadCandles parses a header-led CSV of bars. The delimiter (comma or
// semicolon) is taken from the header line. time, open, high, low and close
// columns are required, volume is optional; a missing column is reported as
// a *features.SchemaError naming source. Unparseable lines are skipped and
// counted, and for duplicate timestamps the first bar is kept. The result is
// sorted by time.
func ReadCandles(r io.Reader, source string) ([]Candle, ReadStats, error) {
	var st ReadStats
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, st, err
	}
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if strings.Contains(line, ";") {
		cr.Comma = ';'
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, st, &features.SchemaError{Source: source, Missing: []string{"time", "open", "high", "low", "close"}}
		}
		return nil, st, fmt.Errorf("read header %s: %w", source, err)
	}

	idx := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch name {
		case "timestamp", "date", "datetime":
			name = "time"
		case "vol":
			name = "volume"
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	var missing []string
	for _, f := range features.PriceSchema {
		if _, ok := idx[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, st, &features.SchemaError{Source: source, Missing: missing}
	}
	volIdx, hasVol := idx["volume"]

	seen := map[int64]bool{}
	var out []Candle
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			st.BadLines++
			continue
		}
		c, ok := parseRecord(rec, idx)
		if !ok {
			st.BadLines++
			continue
		}
		if hasVol && volIdx < len(rec) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[volIdx]), 64); err == nil {
				c.Volume = v
			}
		}
		key := c.Time.UnixNano()
		if seen[key] {
			st.Duplicates++
			continue
		}
		seen[key] = true
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	st.Rows = len(out)
	return out, st, nil
}

func parseRecord(rec []string, idx map[string]int) (Candle, bool) {
	field := func(name string) (string, bool) {
		i := idx[name]
		if i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	ts, ok := field("time")
	if !ok {
		return Candle{}, false
	}
	at, err := parseTime(ts)
	if err != nil {
		return Candle{}, false
	}

	var px [4]float64
	for i, name := range []string{"open", "high", "low", "close"} {
		s, ok := field(name)
		if !ok {
			return Candle{}, false
		}
		if px[i], err = strconv.ParseFloat(s, 64); err != nil {
			return Candle{}, false
		}
	}
	return Candle{Time: at, Open: px[0], High: px[1], Low: px[2], Close: px[3]}, true
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dukasLayout, s, estNoDST); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
