package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage tradefuse configuration files.

Examples:
  tradefuse config init -o tradefuse.yaml
  tradefuse config validate -f tradefuse.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(a.out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintf(a.out, "\nEdit the file and run with:\n  tradefuse run -c %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "tradefuse.yaml", "output config file path (.yaml or .json)")

	var file string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(file, nil)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(a.out, "✓ Configuration valid: %s\n", file)
			fmt.Fprintf(a.out, "  Account: %.2f %s (MTD %.2f%%)\n", cfg.Account.Equity, cfg.Account.Currency, cfg.Account.MTDReturn*100)
			for _, s := range cfg.Sleeves {
				fmt.Fprintf(a.out, "  Sleeve: %s (%s, priority %d)\n", s.Tag, s.Kind, s.Priority)
			}
			fmt.Fprintf(a.out, "  Target vol: %.1f%%\n", cfg.Sizing.TargetAnnVol*100)
			fmt.Fprintf(a.out, "  Journal: %s\n", cfg.Paths.Journal)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&file, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
