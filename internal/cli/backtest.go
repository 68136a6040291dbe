package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/backtest"
	"github.com/rustyeddy/tradefuse/features"
	"github.com/rustyeddy/tradefuse/market"
	"github.com/rustyeddy/tradefuse/regime"
)

func newBacktestCmd(a *app) *cobra.Command {
	var (
		symbols      []string
		fromStr      string
		toStr        string
		warmup       int
		hazardSymbol string
		noHazard     bool
		noJournal    bool
		metricsOut   string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay stored prices through the pipeline bar by bar",
		Long: `Backtest replays the stored history one bar time at a time. Each step sees
only the bars at or before it. A fresh hazard detector is scored from the
hazard symbol's realized vol before every step; the saved detector state is
left untouched.

Example:
  tradefuse backtest -c tradefuse.yaml --from 2024-01-01T00:00:00Z --warmup 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			from, err := parseOptionalTime("--from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseOptionalTime("--to", toStr)
			if err != nil {
				return err
			}
			if !from.IsZero() && !to.IsZero() && !from.Before(to) {
				return fmt.Errorf("--from must be before --to")
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
			symbols = normalize(symbols)
			sort.Strings(symbols)

			var series []market.Series
			for _, sym := range symbols {
				s, err := loadSeries(ctx, st, sym, time.Time{}, a.cfg.Vol)
				if errors.Is(err, features.ErrNotFound) {
					a.log.Warn().Str("symbol", sym).Msg("no prices")
					continue
				}
				if err != nil {
					a.log.Error().Str("symbol", sym).Err(err).Msg("symbol skipped")
					continue
				}
				series = append(series, s)
			}
			if len(series) == 0 {
				return fmt.Errorf("backtest: no prices for %v: %w", symbols, features.ErrNotFound)
			}

			r := &backtest.Runner{
				Feed:    backtest.NewSeriesFeed(series, from, to, warmup),
				Account: a.cfg.Book(),
				Log:     a.log,
			}
			if !noHazard {
				if hazardSymbol == "" {
					hazardSymbol = series[0].Symbol
				}
				r.Hazard = regime.New(a.cfg.Hazard)
				r.HazardSymbol = market.NormalizeSymbol(hazardSymbol)
			}

			reg := prometheus.NewRegistry()
			if r.Pipeline, err = a.newPipeline(reg, r.Hazard); err != nil {
				return err
			}
			if !noJournal {
				j, err := a.openJournal()
				if err != nil {
					return err
				}
				defer j.Close()
				r.Journal = j
			}

			res, err := r.Run(ctx)
			if err != nil {
				return err
			}
			if metricsOut != "" {
				if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}

			fmt.Fprintf(a.out,
				"Done. runs=%d intents=%d directional=%d long=%d short=%d warnings=%d hazard_steps=%d\n",
				res.Runs, res.Intents, res.Directional, res.BySide["long"], res.BySide["short"], res.Warnings, res.HazardSteps)
			if res.Runs > 0 {
				fmt.Fprintf(a.out, "From %s to %s\n", res.Start.UTC().Format(time.RFC3339), res.End.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "symbols to replay (default: every symbol with stored prices)")
	cmd.Flags().StringVar(&fromStr, "from", "", "optional RFC3339 start time")
	cmd.Flags().StringVar(&toStr, "to", "", "optional RFC3339 end time (exclusive)")
	cmd.Flags().IntVar(&warmup, "warmup", 50, "bar times skipped before the first step")
	cmd.Flags().StringVar(&hazardSymbol, "hazard-symbol", "", "symbol whose vol drives the hazard detector (default: first symbol)")
	cmd.Flags().BoolVar(&noHazard, "no-hazard", false, "run without the hazard gate")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not record the runs")
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "", "write metrics in Prometheus text format to this file")
	return cmd
}

func parseOptionalTime(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s: %w", flag, err)
	}
	return t.UTC(), nil
}
