package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatRunOrg renders a run as an Org-mode block: run facts in a PROPERTIES
// drawer, one sub-heading per directional decision, a table of flat ones and a
// list of warnings, followed by an empty Review section.
func FormatRunOrg(r Run, ds []Decision, ws []WarningRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Run: %s (%s)\n", r.AsOf.UTC().Format(time.RFC3339), shortID(r.RunID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", r.RunID)
	fmt.Fprintf(&b, ":AS_OF: %s\n", r.AsOf.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CREATED_AT: %s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":INTENTS: %d\n", r.Intents)
	fmt.Fprintf(&b, ":DIRECTIONAL: %d\n", r.Directional)
	fmt.Fprintf(&b, ":WARNINGS: %d\n", r.Warnings)
	fmt.Fprintf(&b, ":HAZARD: %t\n", r.Hazard)
	fmt.Fprintf(&b, ":HAZARD_SCORE: %.3f\n", r.HazardScore)
	if r.HazardReason != "" {
		fmt.Fprintf(&b, ":HAZARD_REASON: %s\n", r.HazardReason)
	}
	b.WriteString(":END:\n\n")

	var flat []Decision
	for _, d := range ds {
		o := d.Intent
		if o.IsFlat() {
			flat = append(flat, d)
			continue
		}
		fmt.Fprintf(&b, "*** %s %s %.0f (%s)\n", o.Symbol, strings.ToUpper(string(o.Side)), o.Units, o.Tag)
		b.WriteString(":PROPERTIES:\n")
		fmt.Fprintf(&b, ":TS: %s\n", o.TS.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, ":CONFIDENCE: %.3f\n", o.Confidence)
		fmt.Fprintf(&b, ":PRIORITY: %d\n", o.Priority)
		if o.CostMultiplier > 0 {
			fmt.Fprintf(&b, ":COST_MULTIPLIER: %.3f\n", o.CostMultiplier)
		}
		if o.NotionalCap > 0 {
			fmt.Fprintf(&b, ":NOTIONAL_CAP: %.2f\n", o.NotionalCap)
		}
		if o.Exit != nil {
			if o.Exit.TP != nil {
				fmt.Fprintf(&b, ":TP: %.5f\n", *o.Exit.TP)
			}
			if o.Exit.SL != nil {
				fmt.Fprintf(&b, ":SL: %.5f\n", *o.Exit.SL)
			}
			if o.Exit.TTLBars != nil {
				fmt.Fprintf(&b, ":TTL_BARS: %d\n", *o.Exit.TTLBars)
			}
		}
		if o.Plan != nil {
			fmt.Fprintf(&b, ":PLAN: tp=%.1f sl=%.1f ev=%.3f stop=%d\n",
				o.Plan.TPPips, o.Plan.SLPips, o.Plan.ExpectedValue, o.Plan.TimeStopBars)
		}
		b.WriteString(":END:\n\n")
	}

	if len(flat) > 0 {
		b.WriteString("*** Flat\n")
		b.WriteString("| symbol | tag | priority | confidence |\n")
		b.WriteString("|--------+-----+----------+------------|\n")
		for _, d := range flat {
			fmt.Fprintf(&b, "| %s | %s | %d | %.3f |\n", d.Intent.Symbol, d.Intent.Tag, d.Intent.Priority, d.Intent.Confidence)
		}
		b.WriteString("\n")
	}

	if len(ws) > 0 {
		b.WriteString("*** Warnings\n")
		for _, w := range ws {
			fmt.Fprintf(&b, "- [%s] %s %s/%s: %s\n", w.Stage, w.Code, w.Symbol, w.Tag, w.Msg)
		}
		b.WriteString("\n")
	}

	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatRunsOrg renders a table of run summaries.
func FormatRunsOrg(runs []Run) string {
	var b strings.Builder
	b.WriteString("| run | as_of | intents | directional | warnings | hazard |\n")
	b.WriteString("|-----+-------+---------+-------------+----------+--------|\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %t |\n",
			r.RunID, r.AsOf.UTC().Format(time.RFC3339), r.Intents, r.Directional, r.Warnings, r.Hazard)
	}
	return b.String()
}

// shortID keeps the random tail of a ULID; the leading characters encode time.
func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
