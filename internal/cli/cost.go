package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/cost"
)

func newCostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Write and inspect transaction-cost snapshots",
	}

	var (
		symbol     string
		band       string
		multiplier float64
		note       string
	)
	writeCmd := &cobra.Command{
		Use:   "write",
		Short: "Publish a new cost snapshot for a symbol",
		Long: `Append a cost snapshot and make it the symbol's latest.

Example:
  tradefuse cost write --symbol EUR_USD --band DEEP --multiplier 0.9 --note "weekly calibration"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := cost.ParseBand(band)
			if err != nil {
				return err
			}
			path, err := cost.WriteCostSnapshot(a.cfg.Paths.Cost, symbol, b, multiplier, note)
			if err != nil {
				return err
			}
			a.log.Info().Str("symbol", cost.NormalizeSymbol(symbol)).Str("path", path).Msg("cost snapshot written")
			fmt.Fprintln(a.out, path)
			return nil
		},
	}
	writeCmd.Flags().StringVar(&symbol, "symbol", "", "symbol, e.g. EUR_USD (required)")
	writeCmd.Flags().StringVar(&band, "band", string(cost.Normal), "liquidity band: THIN|NORMAL|DEEP")
	writeCmd.Flags().Float64Var(&multiplier, "multiplier", cost.DefaultMultiplier, "cost multiplier (> 0)")
	writeCmd.Flags().StringVar(&note, "note", "", "free-form note")
	_ = writeCmd.MarkFlagRequired("symbol")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the latest snapshot of every calibrated symbol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := cost.LoadLatest(a.cfg.Paths.Cost)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%-10s %-7s %10s %8s  %s\n", "SYMBOL", "BAND", "MULT", "VERSION", "NOTE")
			for _, sym := range m.Symbols() {
				s, _ := m.Snapshot(sym)
				fmt.Fprintf(a.out, "%-10s %-7s %10.4f %8d  %s\n", s.Symbol, s.LiquidityBand, s.CostMultiplier, s.Version, s.Note)
			}
			return nil
		},
	}

	cmd.AddCommand(writeCmd, showCmd)
	return cmd
}
