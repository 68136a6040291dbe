package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query journaled pipeline runs",
		Long: `Query runs recorded by "tradefuse run".

Examples:
  tradefuse journal runs --limit 20
  tradefuse journal show <run-id>
  tradefuse journal export <run-id> -o decisions.csv`,
	}

	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs as an Org table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer j.Close()

			runs, err := j.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("query runs: %w", err)
			}
			fmt.Fprint(a.out, journal.FormatRunsOrg(runs))
			return nil
		},
	}
	runsCmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 = all)")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Render a run as an Org-mode block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer j.Close()

			r, ds, ws, err := j.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, journal.FormatRunOrg(r, ds, ws))
			return nil
		},
	}

	var (
		output   string
		warnings bool
	)
	exportCmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run's decisions (or warnings) as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer j.Close()

			ctx := cmd.Context()
			if _, err := j.GetRun(ctx, args[0]); err != nil {
				return err
			}

			var w io.Writer = a.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if warnings {
				ws, err := j.ListWarnings(ctx, args[0])
				if err != nil {
					return err
				}
				return journal.WriteWarningsCSV(w, ws)
			}
			ds, err := j.ListDecisions(ctx, args[0])
			if err != nil {
				return err
			}
			return journal.WriteDecisionsCSV(w, ds)
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "-", "output file (- for stdout)")
	exportCmd.Flags().BoolVar(&warnings, "warnings", false, "export warnings instead of decisions")

	cmd.AddCommand(runsCmd, showCmd, exportCmd)
	return cmd
}
