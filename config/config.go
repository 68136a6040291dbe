// Package config loads the tradefuse configuration: sleeves, risk caps,
// sizing, universe, hazard detector, store paths and logging.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradefuse/intent"
	"github.com/rustyeddy/tradefuse/pipeline"
	"github.com/rustyeddy/tradefuse/pkg/logger"
	"github.com/rustyeddy/tradefuse/regime"
	"github.com/rustyeddy/tradefuse/risk"
	"github.com/rustyeddy/tradefuse/selection"
	"github.com/rustyeddy/tradefuse/sleeves"
)

type Config struct {
	Log      logger.Config      `json:"log" yaml:"log"`
	Account  AccountConfig      `json:"account" yaml:"account"`
	Sleeves  []sleeves.Spec     `json:"sleeves" yaml:"sleeves" validate:"dive"`
	Risk     risk.Overlay       `json:"risk" yaml:"risk"`
	Sizing   pipeline.Sizing    `json:"sizing" yaml:"sizing"`
	Universe selection.Universe `json:"universe" yaml:"universe"`
	Hazard   regime.Config      `json:"hazard" yaml:"hazard"`
	Vol      VolConfig          `json:"vol" yaml:"vol"`
	Paths    PathsConfig        `json:"paths" yaml:"paths"`
}

// AccountConfig is the book state used when the CLI runs the pipeline.
type AccountConfig struct {
	Currency     string                 `json:"currency" yaml:"currency" default:"USD" validate:"len=3"`
	Equity       float64                `json:"equity" yaml:"equity" default:"100000"`
	MTDReturn    float64                `json:"mtd_return" yaml:"mtd_return"`
	Held         map[string]intent.Side `json:"held,omitempty" yaml:"held,omitempty" validate:"dive,oneof=long short flat"`
	Correlations []Correlation          `json:"correlations,omitempty" yaml:"correlations,omitempty" validate:"dive"`
}

type Correlation struct {
	A     string  `json:"a" yaml:"a" validate:"required"`
	B     string  `json:"b" yaml:"b" validate:"required,nefield=A"`
	Value float64 `json:"value" yaml:"value" validate:"gte=-1,lte=1"`
}

// VolConfig controls the realized-volatility series fed to sizing and the
// hazard detector.
type VolConfig struct {
	Window         int `json:"window" yaml:"window" default:"20" validate:"gte=2"`
	PeriodsPerYear int `json:"periods_per_year" yaml:"periods_per_year" default:"6048" validate:"gt=0"`
}

// PathsConfig locates the persisted stores.
type PathsConfig struct {
	Features string `json:"features" yaml:"features" default:"data/features"`
	Cost     string `json:"cost" yaml:"cost" default:"data/cost"`
	EV       string `json:"ev" yaml:"ev" default:"data/ev"`
	Hazard   string `json:"hazard" yaml:"hazard" default:"data/hazard"`
	Journal  string `json:"journal" yaml:"journal" default:"data/journal.sqlite"`
}

var validate = validator.New()

// Default returns a configuration with one EMA-cross sleeve and every
// default applied.
func Default() *Config {
	c := &Config{
		Sleeves: []sleeves.Spec{{Kind: "ema_cross", Tag: "trend", Priority: 1}},
	}
	if err := defaults.Set(c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load parses YAML (or JSON) config data. ${VAR} references are resolved
// with lookup first; defaults fill in whatever the document leaves zero.
func Load(data []byte, lookup LookupFunc) (*Config, error) {
	resolved, err := Resolve(data, lookup)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(resolved, cfg); err != nil {
		cfg = &Config{}
		if jerr := json.Unmarshal(resolved, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads and loads path. A nil lookup resolves references from
// the process environment.
func LoadFromFile(path string, lookup LookupFunc) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Load(data, lookup)
}

// SaveToFile writes the config as YAML for .yaml/.yml paths and JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks struct constraints and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Sleeves) == 0 {
		return fmt.Errorf("at least one sleeve is required")
	}
	kinds := map[string]bool{}
	for _, k := range sleeves.Kinds() {
		kinds[k] = true
	}
	tags := map[string]bool{}
	for _, s := range c.Sleeves {
		if !kinds[s.Kind] {
			return fmt.Errorf("sleeve %s: unknown kind %q", s.Tag, s.Kind)
		}
		if tags[s.Tag] {
			return fmt.Errorf("sleeve %s: duplicate tag", s.Tag)
		}
		tags[s.Tag] = true
		if (s.Kind == "ema_cross" || s.Kind == "sma_cross") && s.Fast >= s.Slow {
			return fmt.Errorf("sleeve %s: fast (%d) must be below slow (%d)", s.Tag, s.Fast, s.Slow)
		}
	}
	if m := c.Risk.MTD; m.Hard < 0 && m.Soft < 0 && m.Hard > m.Soft {
		return fmt.Errorf("risk.mtd.hard (%.4f) must not be above risk.mtd.soft (%.4f)", m.Hard, m.Soft)
	}
	if c.Hazard.ExitThreshold > c.Hazard.Threshold {
		return fmt.Errorf("hazard.exit_threshold must not exceed hazard.threshold")
	}
	return nil
}

// Book returns the account state as the pipeline expects it.
func (c *Config) Book() pipeline.Account {
	corr := risk.Correlations{}
	for _, e := range c.Account.Correlations {
		corr[risk.Pair{A: e.A, B: e.B}] = e.Value
	}
	return pipeline.Account{
		Equity:       c.Account.Equity,
		MTDReturn:    c.Account.MTDReturn,
		Held:         c.Account.Held,
		Correlations: corr,
	}
}
