package cli

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/market"
)

func newFeaturesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Import prices and inspect the feature store",
	}

	var symbol string
	importCmd := &cobra.Command{
		Use:   "import <csv>...",
		Short: "Merge candle CSV files into a symbol's stored prices",
		Long: `Read OHLC candle CSVs (comma or semicolon separated, Dukascopy or RFC3339
timestamps) and upsert them into the price table. Later files win on
duplicate timestamps. Each file is recorded in the provenance log. A file
that cannot be read is reported and skipped; the rest are still imported.

Example:
  tradefuse features import --symbol EUR_USD data/EURUSD_2024_01.csv data/EURUSD_2024_02.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openFeatures()
			if err != nil {
				return err
			}
			defer st.Close()

			sym := market.NormalizeSymbol(symbol)
			var failed []error
			for _, path := range args {
				candles, stats, err := market.ReadCandlesFile(path)
				if err != nil {
					a.log.Error().Str("symbol", sym).Str("file", path).Err(err).Msg("file skipped")
					fmt.Fprintf(a.out, "%s: skipped: %v\n", path, err)
					failed = append(failed, err)
					continue
				}
				total, err := st.UpsertPrices(ctx, sym, market.ToFrame(candles))
				if err != nil {
					return err
				}
				id, err := st.RecordProvenance(ctx, sym, "prices", filepath.Base(path), fmt.Sprintf("rows=%d", stats.Rows))
				if err != nil {
					return err
				}
				a.log.Info().
					Str("symbol", sym).
					Str("file", path).
					Int("rows", stats.Rows).
					Int("duplicates", stats.Duplicates).
					Int("bad_lines", stats.BadLines).
					Int("total", total).
					Int64("provenance", id).
					Msg("prices imported")
				fmt.Fprintf(a.out, "%s: %s, %d rows stored\n", path, stats, total)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d files not imported: %w", len(failed), len(args), errors.Join(failed...))
			}
			return nil
		},
	}
	importCmd.Flags().StringVar(&symbol, "symbol", "", "symbol the files belong to (required)")
	_ = importCmd.MarkFlagRequired("symbol")

	var tail int
	pricesCmd := &cobra.Command{
		Use:   "prices [symbol]",
		Short: "List stored symbols, or print the last bars of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openFeatures()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 0 {
				syms, err := st.Symbols(ctx)
				if err != nil {
					return err
				}
				for _, s := range syms {
					fmt.Fprintln(a.out, s)
				}
				return nil
			}
			sym := market.NormalizeSymbol(args[0])
			ser, err := loadSeries(ctx, st, sym, time.Time{}, a.cfg.Vol)
			if err != nil {
				return err
			}
			start := 0
			if tail > 0 && ser.Len() > tail {
				start = ser.Len() - tail
			}
			fmt.Fprintf(a.out, "%-20s %10s %10s %10s %10s %8s\n", "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOL")
			for i := start; i < ser.Len(); i++ {
				c := ser.Candles[i]
				v := "-"
				if !math.IsNaN(ser.Vol[i]) {
					v = fmt.Sprintf("%.4f", ser.Vol[i])
				}
				fmt.Fprintf(a.out, "%-20s %10.5f %10.5f %10.5f %10.5f %8s\n",
					c.Time.UTC().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, v)
			}
			return nil
		},
	}
	pricesCmd.Flags().IntVar(&tail, "tail", 10, "number of bars to print (0 = all)")

	provCmd := &cobra.Command{
		Use:   "provenance [subject]",
		Short: "Print the provenance log, optionally for one subject",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openFeatures()
			if err != nil {
				return err
			}
			defer st.Close()

			subject := ""
			if len(args) == 1 {
				subject = args[0]
			}
			rows, err := st.ListProvenance(cmd.Context(), subject)
			if err != nil {
				return err
			}
			for _, p := range rows {
				fmt.Fprintf(a.out, "%4d %s %-10s %-8s %s %s\n",
					p.ID, p.RecordedAt.Format(time.RFC3339), p.Subject, p.Kind, p.SourceRef, p.Version)
			}
			return nil
		},
	}

	cmd.AddCommand(importCmd, pricesCmd, provCmd)
	return cmd
}
