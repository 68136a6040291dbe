// Package cli wires the tradefuse command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradefuse/config"
	"github.com/rustyeddy/tradefuse/pkg/logger"
)

const version = "0.3.0"

// RootConfig holds the persistent flags.
type RootConfig struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	LogFormat  string
}

// app is the state shared by every subcommand once the root pre-run has
// loaded the environment, the config and the logger.
type app struct {
	rc     *RootConfig
	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
	out    io.Writer
}

func NewRootCmd() *cobra.Command {
	a := &app{rc: &RootConfig{}, log: zerolog.Nop(), out: os.Stdout}

	cmd := &cobra.Command{
		Use:           "tradefuse",
		Short:         "tradefuse: multi-sleeve trade decision pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.rc.ConfigPath, "config", "c", "", "config file (YAML or JSON); defaults to $TRADEFUSE_CONFIG")
	cmd.PersistentFlags().StringVar(&a.rc.EnvFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&a.rc.LogLevel, "log-level", "", "override log level: trace|debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&a.rc.LogFormat, "log-format", "", "override log format: console|json")

	cmd.AddCommand(
		newRunCmd(a),
		newBacktestCmd(a),
		newConfigCmd(a),
		newCostCmd(a),
		newEVCmd(a),
		newHazardCmd(a),
		newFeaturesCmd(a),
		newJournalCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "tradefuse %s\n", version)
			},
		},
	)
	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := loadEnv(a.rc.EnvFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	path := a.rc.ConfigPath
	if path == "" {
		path = os.Getenv("TRADEFUSE_CONFIG")
	}
	cfg := config.Default()
	if path != "" {
		c, err := config.LoadFromFile(path, nil)
		if err != nil {
			return err
		}
		cfg = c
	}
	if a.rc.LogLevel != "" {
		cfg.Log.Level = a.rc.LogLevel
	}
	if a.rc.LogFormat != "" {
		cfg.Log.Format = a.rc.LogFormat
	}
	if cfg.Log.Output == "" || cfg.Log.Output == "stderr" {
		cfg.Log.Writer = cmd.ErrOrStderr()
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.closer, a.out = cfg, log, closer, cmd.OutOrStdout()
	a.log.Debug().Str("config", path).Str("command", cmd.CommandPath()).Msg("starting")
	return nil
}

// loadEnv loads path into the process environment without overriding
// variables that are already set. A missing default file is ignored.
func loadEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}
