package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var decisionHeader = []string{
	"run_id", "seq", "ts", "symbol", "side", "units", "confidence", "tag", "priority",
	"entry_type", "entry_price", "notional_cap", "cost_multiplier", "tp", "sl", "ttl_bars",
	"plan_tp_pips", "plan_sl_pips", "plan_ev", "plan_time_stop",
}

var warningHeader = []string{"run_id", "seq", "stage", "code", "symbol", "tag", "msg"}

// WriteDecisionsCSV writes ds with a header row. Absent optional fields are
// empty cells.
func WriteDecisionsCSV(w io.Writer, ds []Decision) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(decisionHeader); err != nil {
		return err
	}
	for _, d := range ds {
		o := d.Intent
		rec := []string{
			d.RunID,
			strconv.Itoa(d.Seq),
			o.TS.UTC().Format(time.RFC3339),
			o.Symbol,
			string(o.Side),
			f(o.Units),
			f(o.Confidence),
			o.Tag,
			strconv.Itoa(o.Priority),
			string(o.Entry.Type),
			fp(o.Entry.Price),
			f(o.NotionalCap),
			f(o.CostMultiplier),
			"", "", "",
			"", "", "", "",
		}
		if o.Exit != nil {
			rec[13], rec[14] = fp(o.Exit.TP), fp(o.Exit.SL)
			if o.Exit.TTLBars != nil {
				rec[15] = strconv.Itoa(*o.Exit.TTLBars)
			}
		}
		if o.Plan != nil {
			rec[16] = f(o.Plan.TPPips)
			rec[17] = f(o.Plan.SLPips)
			rec[18] = f(o.Plan.ExpectedValue)
			rec[19] = strconv.Itoa(o.Plan.TimeStopBars)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteWarningsCSV(w io.Writer, ws []WarningRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(warningHeader); err != nil {
		return err
	}
	for _, x := range ws {
		if err := cw.Write([]string{x.RunID, strconv.Itoa(x.Seq), x.Stage, x.Code, x.Symbol, x.Tag, x.Msg}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func fp(x *float64) string {
	if x == nil {
		return ""
	}
	return f(*x)
}
