package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/pipeline"
)

type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

type Option func(*SQLite)

func WithLogger(l zerolog.Logger) Option {
	return func(j *SQLite) { j.log = l }
}

// NewSQLite opens (creating if needed) the journal database at path.
func NewSQLite(path string, opts ...Option) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	j := &SQLite{db: db, log: zerolog.Nop(), now: time.Now}
	for _, o := range opts {
		o(j)
	}
	return j, nil
}

// RecordRun stores res with its intents and warnings in one transaction.
// Recording the same run id twice is an error.
func (j *SQLite) RecordRun(ctx context.Context, res pipeline.Result) error {
	if res.RunID == "" {
		return fmt.Errorf("record run: run id is required")
	}
	r := Summarize(res, j.now().UTC())

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, as_of, created_at, intents, directional, warnings, hazard, hazard_score, hazard_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.AsOf.UTC().UnixNano(), r.CreatedAt.UnixNano(), r.Intents, r.Directional,
		r.Warnings, r.Hazard, r.HazardScore, r.HazardReason,
	); err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}

	for i, o := range res.Intents {
		if err := insertDecision(ctx, tx, r.RunID, i, o); err != nil {
			return fmt.Errorf("record run %s decision %d: %w", r.RunID, i, err)
		}
	}
	for i, w := range res.Warnings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO warnings (run_id, seq, stage, code, symbol, tag, msg)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, i, w.Stage, w.Code, w.Symbol, w.Tag, w.Msg,
		); err != nil {
			return fmt.Errorf("record run %s warning %d: %w", r.RunID, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", r.RunID, err)
	}

	j.log.Debug().
		Str("run_id", r.RunID).
		Int("intents", r.Intents).
		Int("warnings", r.Warnings).
		Msg("run journaled")
	return nil
}

func insertDecision(ctx context.Context, tx *sql.Tx, runID string, seq int, o intent.OrderIntent) error {
	var tp, sl, planTP, planSL, planEV sql.NullFloat64
	var ttl, planStop sql.NullInt64
	if o.Exit != nil {
		tp, sl = nullFloat(o.Exit.TP), nullFloat(o.Exit.SL)
		if o.Exit.TTLBars != nil {
			ttl = sql.NullInt64{Int64: int64(*o.Exit.TTLBars), Valid: true}
		}
	}
	if o.Plan != nil {
		planTP = sql.NullFloat64{Float64: o.Plan.TPPips, Valid: true}
		planSL = sql.NullFloat64{Float64: o.Plan.SLPips, Valid: true}
		planEV = sql.NullFloat64{Float64: o.Plan.ExpectedValue, Valid: true}
		planStop = sql.NullInt64{Int64: int64(o.Plan.TimeStopBars), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO decisions
		(run_id, seq, ts, symbol, side, entry_type, entry_price, tag, priority, confidence,
		 units, notional_cap, cost_multiplier, tp, sl, ttl_bars,
		 plan_tp_pips, plan_sl_pips, plan_ev, plan_time_stop)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, o.TS.UTC().UnixNano(), o.Symbol, string(o.Side), string(o.Entry.Type),
		nullFloat(o.Entry.Price), o.Tag, o.Priority, o.Confidence,
		o.Units, o.NotionalCap, o.CostMultiplier, tp, sl, ttl,
		planTP, planSL, planEV, planStop,
	)
	return err
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
