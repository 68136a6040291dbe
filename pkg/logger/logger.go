// Package logger builds the zerolog logger shared by the CLI and the
// pipeline components.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string `yaml:"level" json:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format     string `yaml:"format" json:"format" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" json:"output" default:"stderr"` // stdout, stderr, or file path
	TimeFormat string `yaml:"time_format" json:"time_format"`

	// Writer overrides Output when set.
	Writer io.Writer `yaml:"-" json:"-"`
}

// New returns a logger configured by cfg. The returned closer releases a log
// file opened for Output and is a no-op otherwise.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}

	var (
		out    io.Writer = cfg.Writer
		closer io.Closer = nopCloser{}
	)
	if out == nil {
		switch cfg.Output {
		case "", "stderr":
			out = os.Stderr
		case "stdout":
			out = os.Stdout
		default:
			f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return zerolog.Nop(), nopCloser{}, fmt.Errorf("could not open log file: %w", err)
			}
			out, closer = f, f
		}
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf, NoColor: cfg.Writer != nil}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
