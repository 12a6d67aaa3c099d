// Package config loads runtime settings from defaults, an optional config
// file and FLOWFIELD_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"flowfield/internal/compute"
	"flowfield/internal/core"
	"flowfield/internal/kernel"
	"flowfield/internal/sim"
)

// EnvPrefix namespaces environment overrides, e.g. FLOWFIELD_GRID_SIZE.
const EnvPrefix = "FLOWFIELD"

// Config is the root configuration object.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Grid    GridConfig    `mapstructure:"grid" yaml:"grid"`
	Sim     SimConfig     `mapstructure:"sim" yaml:"sim"`
	Compute ComputeConfig `mapstructure:"compute" yaml:"compute"`
	Terrain TerrainConfig `mapstructure:"terrain" yaml:"terrain"`
	Sweep   SweepConfig   `mapstructure:"sweep" yaml:"sweep"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color for each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// GridConfig sizes the terrain.
type GridConfig struct {
	Size int `mapstructure:"size" yaml:"size"`
}

// SimConfig configures the step loop.
type SimConfig struct {
	MaxIterations int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	CheckEvery    int           `mapstructure:"check_every" yaml:"check_every"`
	Pacing        time.Duration `mapstructure:"pacing" yaml:"pacing"`
	Settle        time.Duration `mapstructure:"settle" yaml:"settle"`
	Variant       string        `mapstructure:"variant" yaml:"variant"`
}

// ComputeConfig selects the kernel backend.
type ComputeConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
}

// TerrainConfig points at an optional CSV terrain file.
type TerrainConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// SweepConfig configures the batch convergence sweep.
type SweepConfig struct {
	Sizes       []int    `mapstructure:"sizes" yaml:"sizes"`
	Variants    []string `mapstructure:"variants" yaml:"variants"`
	Terrains    []string `mapstructure:"terrains" yaml:"terrains"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	Output      string   `mapstructure:"output" yaml:"output"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flowfield")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Grid --
	v.SetDefault("grid.size", sim.DefaultSize)

	// -- Simulation --
	v.SetDefault("sim.max_iterations", sim.DefaultMaxIterations)
	v.SetDefault("sim.check_every", sim.DefaultCheckEvery)
	v.SetDefault("sim.pacing", sim.DefaultPacing.String())
	v.SetDefault("sim.settle", sim.DefaultSettle.String())
	v.SetDefault("sim.variant", kernel.Relaxed.String())

	// -- Compute --
	v.SetDefault("compute.backend", "cpu")
	v.SetDefault("compute.workers", 0)

	// -- Terrain --
	v.SetDefault("terrain.file", "")

	// -- Sweep --
	v.SetDefault("sweep.sizes", []int{16, 32, 64})
	v.SetDefault("sweep.variants", []string{kernel.Relaxed.String(), kernel.NoRelaxation.String()})
	v.SetDefault("sweep.terrains", []string{"open", "maze"})
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("sweep.output", "")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Grid.Size <= 0 {
		return fmt.Errorf("grid.size must be a positive integer")
	}
	if c.Sim.CheckEvery <= 0 {
		return fmt.Errorf("sim.check_every must be a positive integer")
	}
	if c.Sim.MaxIterations < 0 {
		return fmt.Errorf("sim.max_iterations must not be negative")
	}
	if c.Sim.Pacing < 0 || c.Sim.Settle < 0 {
		return fmt.Errorf("sim.pacing and sim.settle must not be negative")
	}
	if _, err := kernel.ParseVariant(c.Sim.Variant); err != nil {
		return fmt.Errorf("sim.variant: %w", err)
	}
	switch strings.ToLower(c.Compute.Backend) {
	case "cpu", "opencl":
	default:
		return fmt.Errorf("compute.backend must be cpu or opencl, got %q", c.Compute.Backend)
	}
	if c.Compute.Workers < 0 {
		return fmt.Errorf("compute.workers must not be negative")
	}
	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("sweep configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the sweep settings.
func (s *SweepConfig) Validate() error {
	for _, n := range s.Sizes {
		if n <= 0 {
			return fmt.Errorf("sizes must be positive, got %d", n)
		}
	}
	for _, name := range s.Variants {
		if _, err := kernel.ParseVariant(name); err != nil {
			return err
		}
	}
	for _, name := range s.Terrains {
		switch name {
		case "open", "maze":
		default:
			return fmt.Errorf("unknown terrain %q (want open or maze)", name)
		}
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}

// SimConfig converts the settings into driver parameters.
func (c *Config) SimConfig() sim.Config {
	variant, _ := kernel.ParseVariant(c.Sim.Variant)
	return sim.Config{
		Size:          c.Grid.Size,
		MaxIterations: c.Sim.MaxIterations,
		CheckEvery:    c.Sim.CheckEvery,
		Pacing:        core.ClampPacing(c.Sim.Pacing),
		Settle:        c.Sim.Settle,
		Variant:       variant,
	}
}

// ComputeOptions converts the settings into backend options.
func (c *Config) ComputeOptions() compute.Options {
	return compute.Options{
		Name:    strings.ToLower(c.Compute.Backend),
		N:       c.Grid.Size,
		Workers: c.Compute.Workers,
	}
}
