package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/exits"
	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/market"
)

func newEVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ev",
		Short: "Fit and inspect the expected-value exit policy",
	}

	var (
		symbol  string
		side    string
		maxBars int
		n       int
		bars    int
		drift   float64
		vol     float64
		seed    int64
	)
	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "Grid-search TP/SL/time-stop levels and publish the best policy",
		Long: `Fit the exit policy on excursion paths cut from a symbol's stored prices
(--symbol), or on synthetic random-walk paths when no symbol is given. A policy
whose expected value is not positive is reported and not published.

Examples:
  tradefuse ev fit --symbol EUR_USD --side long --max-bars 48
  tradefuse ev fit --paths 2000 --bars 48 --drift 0.3 --vol 4 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openFeatures()
			if err != nil {
				return err
			}
			defer st.Close()

			var (
				paths  []exits.Path
				source string
			)
			if symbol != "" {
				sd := intent.Side(side)
				if sd != intent.Long && sd != intent.Short && sd != intent.Flat {
					return fmt.Errorf("invalid --side %q (want long, short or flat)", side)
				}
				sym := market.NormalizeSymbol(symbol)
				df, err := st.GetPrices(ctx, sym)
				if err != nil {
					return err
				}
				candles, err := market.FromFrame(sym, df)
				if err != nil {
					return err
				}
				paths = exits.PathsFromCandles(candles, market.PipSize(sym), maxBars, sd)
				source = fmt.Sprintf("prices:%s:%s:%d", sym, side, maxBars)
			} else {
				rng := rand.New(rand.NewSource(seed))
				paths = exits.SyntheticPaths(rng, n, bars, drift, vol)
				source = fmt.Sprintf("synthetic:n=%d,bars=%d,drift=%g,vol=%g,seed=%d", n, bars, drift, vol, seed)
			}

			pol, err := exits.SynthFitEVPolicy(paths, exits.DefaultGrid())
			if err != nil {
				return err
			}
			a.log.Info().
				Int("paths", len(paths)).
				Float64("tp_pips", pol.TPPips).
				Float64("sl_pips", pol.SLPips).
				Int("time_stop", pol.TimeStopBars).
				Float64("ev", pol.ExpectedValue).
				Msg("exit policy fitted")
			if !pol.Usable() {
				fmt.Fprintf(a.out, "best policy is not usable (ev=%.4f pips), nothing published\n", pol.ExpectedValue)
				return exits.ErrUnusablePolicy
			}

			path, err := exits.WriteEVPolicy(a.cfg.Paths.EV, pol)
			if err != nil {
				return err
			}
			if _, err := st.RecordProvenance(ctx, "ev_policy", "fit", source, path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "tp=%.1f sl=%.1f time_stop=%d ev=%.4f pips\n%s\n",
				pol.TPPips, pol.SLPips, pol.TimeStopBars, pol.ExpectedValue, path)
			return nil
		},
	}
	fitCmd.Flags().StringVar(&symbol, "symbol", "", "fit on this symbol's stored prices")
	fitCmd.Flags().StringVar(&side, "side", "flat", "trade side for price paths: long|short|flat (both)")
	fitCmd.Flags().IntVar(&maxBars, "max-bars", 48, "bars per price path")
	fitCmd.Flags().IntVar(&n, "paths", 1000, "synthetic path count")
	fitCmd.Flags().IntVar(&bars, "bars", 48, "synthetic bars per path")
	fitCmd.Flags().Float64Var(&drift, "drift", 0.5, "synthetic drift per bar, pips")
	fitCmd.Flags().Float64Var(&vol, "vol", 5, "synthetic volatility per bar, pips")
	fitCmd.Flags().Int64Var(&seed, "seed", 1, "synthetic RNG seed")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the published exit policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := exits.LoadLatest(a.cfg.Paths.EV)
			if err != nil {
				return err
			}
			p := pl.Policy()
			fmt.Fprintf(a.out, "version %d fitted %s\n", p.Version, p.FittedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(a.out, "tp=%.1f sl=%.1f time_stop=%d ev=%.4f pips\n", p.TPPips, p.SLPips, p.TimeStopBars, p.ExpectedValue)
			return nil
		},
	}

	cmd.AddCommand(fitCmd, showCmd)
	return cmd
}
