package features

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// UpsertPrices merges the rows of df into symbol's price series. Rows are
// de-duplicated by time; on conflict the later write wins, including later
// rows within df itself. It returns the symbol's row count after the merge.
func (s *Store) UpsertPrices(ctx context.Context, symbol string, df Frame) (int, error) {
	if symbol == "" {
		return 0, fmt.Errorf("upsert prices: symbol is required")
	}
	if err := CheckColumns(symbol, df, PriceSchema); err != nil {
		return 0, err
	}
	if _, err := NewFrame(df.Columns...); err != nil {
		return 0, fmt.Errorf("upsert prices %s: %w", symbol, err)
	}

	ts, _ := df.Column("time")
	open, _ := df.Column("open")
	high, _ := df.Column("high")
	low, _ := df.Column("low")
	cl, _ := df.Column("close")
	vol, hasVol := df.Column("volume")
	if hasVol && vol.Kind != KindFloat {
		return 0, &SchemaError{Source: symbol, Mistyped: []string{fmt.Sprintf("volume(%s!=%s)", vol.Kind, KindFloat)}}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert prices %s: %w", symbol, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO prices (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	if err != nil {
		return 0, fmt.Errorf("upsert prices %s: %w", symbol, err)
	}
	defer stmt.Close()

	for i := 0; i < df.Len(); i++ {
		var v sql.NullFloat64
		if hasVol {
			v = nullable(vol.Floats[i])
		}
		if _, err := stmt.ExecContext(ctx, symbol, ts.Times[i].UTC().UnixNano(),
			nullable(open.Floats[i]), nullable(high.Floats[i]), nullable(low.Floats[i]),
			nullable(cl.Floats[i]), v); err != nil {
			return 0, fmt.Errorf("upsert prices %s row %d: %w", symbol, i, err)
		}
	}

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM prices WHERE symbol = ?`, symbol).Scan(&n); err != nil {
		return 0, fmt.Errorf("count prices %s: %w", symbol, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prices %s: %w", symbol, err)
	}

	s.log.Debug().Str("symbol", symbol).Int("rows_in", df.Len()).Int("rows_total", n).Msg("prices upserted")
	return n, nil
}

// GetPrices returns symbol's series ordered by time, with columns time, open,
// high, low, close and volume. Missing values come back as NaN.
func (s *Store) GetPrices(ctx context.Context, symbol string) (Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM prices
		WHERE symbol = ?
		ORDER BY ts ASC`, symbol)
	if err != nil {
		return Frame{}, fmt.Errorf("query prices %s: %w", symbol, err)
	}
	defer rows.Close()

	var (
		ts                     []time.Time
		op, hi, lo, cl, volume []float64
	)
	for rows.Next() {
		var (
			n          int64
			o, h, l, c sql.NullFloat64
			v          sql.NullFloat64
		)
		if err := rows.Scan(&n, &o, &h, &l, &c, &v); err != nil {
			return Frame{}, fmt.Errorf("scan prices %s: %w", symbol, err)
		}
		ts = append(ts, time.Unix(0, n).UTC())
		op = append(op, orNaN(o))
		hi = append(hi, orNaN(h))
		lo = append(lo, orNaN(l))
		cl = append(cl, orNaN(c))
		volume = append(volume, orNaN(v))
	}
	if err := rows.Err(); err != nil {
		return Frame{}, err
	}
	if len(ts) == 0 {
		return Frame{}, fmt.Errorf("prices %s: %w", symbol, ErrNotFound)
	}

	return NewFrame(
		TimeColumn("time", ts),
		FloatColumn("open", op),
		FloatColumn("high", hi),
		FloatColumn("low", lo),
		FloatColumn("close", cl),
		FloatColumn("volume", volume),
	)
}

// Symbols lists the symbols that have prices.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM prices ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func nullable(x float64) sql.NullFloat64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
