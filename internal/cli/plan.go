package cli

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rustyeddy/tradefuse/config"
	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
	"github.com/rustyeddy/tradefuse/pipeline"
	"github.com/rustyeddy/tradefuse/risk"
)

// planRow is a directional intent's bracket expressed as account risk.
type planRow struct {
	Symbol    string
	Side      intent.Side
	Units     float64
	Entry     float64
	Stop      float64
	TP        float64 // NaN without a take profit
	StopPips  float64
	RiskUSD   float64
	RiskPct   float64
	RR        float64
	Budget    float64
	BudgetFit float64 // units a pip-risk sizer would allow at the budget
	Note      string
}

// planRows prices every directional intent against the account. Intents
// without a stop or reference price still get a row with a note.
func planRows(res pipeline.Result, snap market.Snapshot, acct config.AccountConfig, riskPct float64) []planRow {
	var rows []planRow
	for _, o := range res.Directional() {
		row := planRow{Symbol: o.Symbol, Side: o.Side, Units: o.Units, TP: math.NaN()}
		switch {
		case o.Entry.Price != nil:
			row.Entry = *o.Entry.Price
		default:
			if ser, ok := snap.Get(o.Symbol); ok {
				if last, ok := ser.Last(); ok {
					row.Entry = last.Close
				}
			}
		}
		if row.Entry <= 0 {
			row.Note = "no reference price"
			rows = append(rows, row)
			continue
		}
		if o.Exit == nil || o.Exit.SL == nil {
			row.Note = "no stop"
			rows = append(rows, row)
			continue
		}
		row.Stop = *o.Exit.SL
		if o.Exit.TP != nil {
			row.TP = *o.Exit.TP
			row.RR = risk.RR(row.Entry, row.Stop, row.TP)
		}

		qta, ok := market.QuoteToAccount(o.Symbol, acct.Currency, row.Entry)
		if !ok {
			row.Note = fmt.Sprintf("no %s conversion", acct.Currency)
			rows = append(rows, row)
			continue
		}
		calc := risk.Calculate(risk.Inputs{
			Equity:         acct.Equity,
			RiskPct:        riskPct,
			EntryPrice:     row.Entry,
			StopPrice:      row.Stop,
			PipLocation:    market.PipLocation(o.Symbol),
			QuoteToAccount: qta,
		})
		row.StopPips = calc.StopPips
		row.Budget = calc.RiskAmount
		row.BudgetFit = calc.Units
		row.RiskUSD = risk.PlannedRiskUSD(o.Units, row.Entry, row.Stop, qta)
		row.RiskPct = risk.RiskPct(row.RiskUSD, acct.Equity)
		if row.RiskUSD > row.Budget {
			row.Note = "over budget"
		}
		rows = append(rows, row)
	}
	return rows
}

func printPlan(w io.Writer, res pipeline.Result, snap market.Snapshot, acct config.AccountConfig, riskPct float64) error {
	fmt.Fprintf(w, "plan %s as of %s  equity %.2f %s  budget %.2f%%\n",
		res.RunID, res.AsOf.UTC().Format(time.RFC3339), acct.Equity, acct.Currency, riskPct*100)
	rows := planRows(res, snap, acct, riskPct)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "  no directional intents")
		return err
	}
	fmt.Fprintf(w, "  %-8s %-5s %12s %10s %10s %10s %8s %10s %7s %5s %12s  %s\n",
		"SYMBOL", "SIDE", "UNITS", "ENTRY", "STOP", "TP", "PIPS", "RISK", "RISK%", "RR", "BUDGET_UNITS", "NOTE")
	for _, r := range rows {
		tp := "-"
		if !math.IsNaN(r.TP) {
			tp = fmt.Sprintf("%.5f", r.TP)
		}
		_, err := fmt.Fprintf(w, "  %-8s %-5s %12.2f %10.5f %10.5f %10s %8.1f %10.2f %6.2f%% %5.2f %12.0f  %s\n",
			r.Symbol, r.Side, r.Units, r.Entry, r.Stop, tp, r.StopPips, r.RiskUSD, r.RiskPct*100, r.RR, r.BudgetFit, r.Note)
		if err != nil {
			return err
		}
	}
	return nil
}
