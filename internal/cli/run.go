package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/journal"
	"github.com/rustyeddy/tradefuse/market"
	"github.com/rustyeddy/tradefuse/pipeline"
	"github.com/rustyeddy/tradefuse/pkg/metrics"
	"github.com/rustyeddy/tradefuse/regime"
	"github.com/rustyeddy/tradefuse/sleeves"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		symbols    []string
		asOfStr    string
		format     string
		noJournal  bool
		metricsOut string
		riskPct    float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured sleeve once and print the handed-off intents",
		Long: `Run evaluates the configured sleeves against the stored prices and carries
their intents through netting, risk caps, sizing, cost, exit planning and the
hazard gate. The result is journaled unless --no-journal is given.

Examples:
  tradefuse run -c tradefuse.yaml
  tradefuse run -c tradefuse.yaml --symbols EUR_USD,USD_JPY --as-of 2024-03-04T12:00:00Z --format json
  tradefuse run -c tradefuse.yaml --format plan --risk-pct 0.005`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch format {
			case "text", "json", "org", "plan":
			default:
				return fmt.Errorf("invalid --format %q (want text, json, org or plan)", format)
			}
			if !(riskPct > 0 && riskPct < 1) {
				return fmt.Errorf("--risk-pct must be in (0, 1), got %v", riskPct)
			}
			asOf, err := parseOptionalTime("--as-of", asOfStr)
			if err != nil {
				return err
			}

			st, err := a.openFeatures()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(symbols) == 0 {
				if symbols, err = st.Symbols(ctx); err != nil {
					return err
				}
			}
			snap, err := loadSnapshot(ctx, st, normalize(symbols), asOf, a.cfg.Vol, a.log)
			if err != nil {
				return err
			}

			hazard, err := a.loadHazard()
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			p, err := a.newPipeline(reg, hazard)
			if err != nil {
				return err
			}

			res, err := p.Run(ctx, snap, a.cfg.Book())
			if err != nil {
				return err
			}

			if !noJournal {
				j, err := a.openJournal()
				if err != nil {
					return err
				}
				defer j.Close()
				if err := j.RecordRun(ctx, res); err != nil {
					return err
				}
			}
			if metricsOut != "" {
				if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			if format == "plan" {
				return printPlan(a.out, res, snap, a.cfg.Account, riskPct)
			}
			return printResult(a, res, format)
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "symbols to load (default: every symbol with stored prices)")
	cmd.Flags().StringVar(&asOfStr, "as-of", "", "evaluate at this RFC3339 time (default: latest stored bar)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text|json|org|plan")
	cmd.Flags().Float64Var(&riskPct, "risk-pct", 0.01, "per-trade risk budget as a fraction of equity, for --format plan")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not record the run")
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "", "write run metrics in Prometheus text format to this file")
	return cmd
}

// newPipeline assembles the pipeline from the config and the persisted
// stores. hazard may be nil.
func (a *app) newPipeline(reg prometheus.Registerer, hazard *regime.Hazard) (*pipeline.Pipeline, error) {
	sl, err := sleeves.BuildAll(a.cfg.Sleeves)
	if err != nil {
		return nil, err
	}
	costs, err := a.loadCostModel()
	if err != nil {
		return nil, err
	}
	planner, err := a.loadPlanner()
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithOverlay(a.cfg.Risk),
		pipeline.WithSizing(a.cfg.Sizing),
		pipeline.WithCostModel(costs),
		pipeline.WithExitPlanner(planner),
		pipeline.WithLogger(a.log),
		pipeline.WithMetrics(metrics.New(reg)),
	}
	if hazard != nil {
		opts = append(opts, pipeline.WithHazard(hazard))
	}
	if !a.cfg.Universe.Empty() {
		opts = append(opts, pipeline.WithUniverse(a.cfg.Universe, nil))
	}
	return pipeline.New(sl, opts...), nil
}

func printResult(a *app, res pipeline.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "org":
		ds := make([]journal.Decision, len(res.Intents))
		for i, o := range res.Intents {
			ds[i] = journal.Decision{RunID: res.RunID, Seq: i, Intent: o}
		}
		ws := make([]journal.WarningRecord, len(res.Warnings))
		for i, w := range res.Warnings {
			ws[i] = journal.WarningRecord{RunID: res.RunID, Seq: i, Warning: w}
		}
		_, err := fmt.Fprint(a.out, journal.FormatRunOrg(journal.Summarize(res, time.Now().UTC()), ds, ws))
		return err
	}

	fmt.Fprintf(a.out, "run %s as of %s  hazard: %s\n", res.RunID, res.AsOf.UTC().Format(time.RFC3339), res.Hazard)
	for _, o := range res.Intents {
		fmt.Fprintf(a.out, "  %s\n", o)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(a.out, "  ! %s\n", w)
	}
	return nil
}

func normalize(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = market.NormalizeSymbol(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
