package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/market"
	"github.com/rustyeddy/tradefuse/regime"
)

func newHazardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hazard",
		Short: "Update and inspect the volatility hazard detector",
	}

	var (
		symbol  string
		asOfStr string
	)
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Score the latest realized vol of a symbol and save the detector state",
		Long: `Load the saved detector (or start calm), score the symbol's realized-vol
series at its last bar and publish the new state.

Example:
  tradefuse hazard update --symbol EUR_USD`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			asOf, err := parseOptionalTime("--as-of", asOfStr)
			if err != nil {
				return err
			}

			st, err := a.openFeatures()
			if err != nil {
				return err
			}
			defer st.Close()

			sym := market.NormalizeSymbol(symbol)
			ser, err := loadSeries(ctx, st, sym, asOf, a.cfg.Vol)
			if err != nil {
				return err
			}
			h, err := a.loadHazard()
			if err != nil {
				return err
			}
			last, _ := ser.Last()
			before := h.State()
			state := h.UpdateFromVolSeries(ser.Vol, last.Time)
			path, err := h.SaveStatus(a.cfg.Paths.Hazard)
			if err != nil {
				return err
			}
			if _, err := st.RecordProvenance(ctx, "hazard", "update", "vol:"+sym, path); err != nil {
				return err
			}

			ev := a.log.Info()
			if state.Hazard != before.Hazard {
				ev = a.log.Warn().Bool("transition", true)
			}
			ev.Str("symbol", sym).
				Float64("score", state.Score).
				Bool("hazard", state.Hazard).
				Str("reason", string(state.Reason)).
				Msg("hazard updated")
			fmt.Fprintln(a.out, state)
			return nil
		},
	}
	updateCmd.Flags().StringVar(&symbol, "symbol", "", "symbol whose realized vol is scored (required)")
	updateCmd.Flags().StringVar(&asOfStr, "as-of", "", "score the series up to this RFC3339 time")
	_ = updateCmd.MarkFlagRequired("symbol")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved detector state, decayed to now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := regime.LoadLatest(a.cfg.Paths.Hazard, a.cfg.Hazard)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, h.State())
			return nil
		},
	}

	cmd.AddCommand(updateCmd, showCmd)
	return cmd
}
