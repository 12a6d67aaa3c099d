package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowfield/internal/kernel"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "flowfield", cfg.Logger.ServiceName)
	assert.Equal(t, 32, cfg.Grid.Size)
	assert.Equal(t, 512, cfg.Sim.MaxIterations)
	assert.Equal(t, 3, cfg.Sim.CheckEvery)
	assert.Equal(t, 100*time.Millisecond, cfg.Sim.Pacing)
	assert.Equal(t, 50*time.Millisecond, cfg.Sim.Settle)
	assert.Equal(t, "relaxed", cfg.Sim.Variant)
	assert.Equal(t, "cpu", cfg.Compute.Backend)
	assert.Equal(t, []int{16, 32, 64}, cfg.Sweep.Sizes)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"grid size", func(c *Config) { c.Grid.Size = 0 }, "grid.size"},
		{"cadence", func(c *Config) { c.Sim.CheckEvery = 0 }, "sim.check_every"},
		{"iterations", func(c *Config) { c.Sim.MaxIterations = -1 }, "sim.max_iterations"},
		{"pacing", func(c *Config) { c.Sim.Pacing = -time.Second }, "sim.pacing"},
		{"variant", func(c *Config) { c.Sim.Variant = "dijkstra" }, "sim.variant"},
		{"backend", func(c *Config) { c.Compute.Backend = "cuda" }, "compute.backend"},
		{"workers", func(c *Config) { c.Compute.Workers = -2 }, "compute.workers"},
		{"sweep terrain", func(c *Config) { c.Sweep.Terrains = []string{"lava"} }, "sweep configuration invalid"},
		{"sweep size", func(c *Config) { c.Sweep.Sizes = []int{8, 0} }, "sizes must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yaml := []byte(`
grid:
  size: 48
sim:
  pacing: 250ms
  variant: no-relaxation
compute:
  workers: 3
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 48, cfg.Grid.Size)
		assert.Equal(t, 250*time.Millisecond, cfg.Sim.Pacing)
		assert.Equal(t, 3, cfg.Compute.Workers)

		sc := cfg.SimConfig()
		assert.Equal(t, kernel.NoRelaxation, sc.Variant)
		assert.Equal(t, 48, sc.Size)
		assert.Equal(t, 48, cfg.ComputeOptions().N)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("FLOWFIELD_GRID_SIZE", "20")
		t.Setenv("FLOWFIELD_COMPUTE_BACKEND", "opencl")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 20, cfg.Grid.Size)
		assert.Equal(t, "opencl", cfg.ComputeOptions().Name)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("sim.check_every", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestSimConfigClampsPacing(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sim.Pacing = time.Millisecond
	assert.Equal(t, 10*time.Millisecond, cfg.SimConfig().Pacing)
	cfg.Sim.Pacing = 0
	assert.Zero(t, cfg.SimConfig().Pacing)
}
