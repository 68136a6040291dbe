package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradefuse/intent"
)

const runColumns = `run_id, as_of, created_at, intents, directional, warnings, hazard, hazard_score, hazard_reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var asOf, created int64
	if err := s.Scan(&r.RunID, &asOf, &created, &r.Intents, &r.Directional,
		&r.Warnings, &r.Hazard, &r.HazardScore, &r.HazardReason); err != nil {
		return Run{}, err
	}
	r.AsOf = time.Unix(0, asOf).UTC()
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}

// GetRun returns the summary of a single run.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first, by as-of time. limit <= 0
// returns every run.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY as_of DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDecisions returns the intents of a run in hand-off order.
func (j *SQLite) ListDecisions(ctx context.Context, runID string) ([]Decision, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, ts, symbol, side, entry_type, entry_price, tag, priority, confidence,
			units, notional_cap, cost_multiplier, tp, sl, ttl_bars,
			plan_tp_pips, plan_sl_pips, plan_ev, plan_time_stop
		FROM decisions
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var (
			d                      = Decision{RunID: runID}
			o                      = &d.Intent
			ts                     int64
			side, entryType        string
			entry, tp, sl          sql.NullFloat64
			planTP, planSL, planEV sql.NullFloat64
			ttl, planStop          sql.NullInt64
		)
		if err := rows.Scan(&d.Seq, &ts, &o.Symbol, &side, &entryType, &entry, &o.Tag,
			&o.Priority, &o.Confidence, &o.Units, &o.NotionalCap, &o.CostMultiplier,
			&tp, &sl, &ttl, &planTP, &planSL, &planEV, &planStop); err != nil {
			return nil, err
		}
		o.TS = time.Unix(0, ts).UTC()
		o.Side = intent.Side(side)
		o.Entry = intent.Entry{Type: intent.EntryType(entryType), Price: floatPtr(entry)}
		if tp.Valid || sl.Valid || ttl.Valid {
			o.Exit = &intent.Exit{TP: floatPtr(tp), SL: floatPtr(sl)}
			if ttl.Valid {
				o.Exit.TTLBars = intent.Int(int(ttl.Int64))
			}
		}
		if planEV.Valid {
			o.Plan = &intent.ExitPlan{
				TPPips:        planTP.Float64,
				SLPips:        planSL.Float64,
				ExpectedValue: planEV.Float64,
				TimeStopBars:  int(planStop.Int64),
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWarnings returns the warnings of a run in the order they were raised.
func (j *SQLite) ListWarnings(ctx context.Context, runID string) ([]WarningRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, stage, code, symbol, tag, msg
		FROM warnings
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WarningRecord
	for rows.Next() {
		w := WarningRecord{RunID: runID}
		if err := rows.Scan(&w.Seq, &w.Stage, &w.Code, &w.Symbol, &w.Tag, &w.Msg); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load returns a run together with its decisions and warnings.
func (j *SQLite) Load(ctx context.Context, runID string) (Run, []Decision, []WarningRecord, error) {
	r, err := j.GetRun(ctx, runID)
	if err != nil {
		return Run{}, nil, nil, err
	}
	ds, err := j.ListDecisions(ctx, runID)
	if err != nil {
		return Run{}, nil, nil, fmt.Errorf("run %s decisions: %w", runID, err)
	}
	ws, err := j.ListWarnings(ctx, runID)
	if err != nil {
		return Run{}, nil, nil, fmt.Errorf("run %s warnings: %w", runID, err)
	}
	return r, ds, ws, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return intent.Float(v.Float64)
}

var _ Journal = (*SQLite)(nil)
