package sim

import (
	"fmt"
	"time"

	"flowfield/internal/kernel"
)

// State is the lifecycle phase of a Driver.
type State int32

const (
	Idle State = iota
	Running
	Converged
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Defaults applied by DefaultConfig.
const (
	DefaultSize          = 32
	DefaultMaxIterations = 512
	DefaultCheckEvery    = 3
	DefaultPacing        = 100 * time.Millisecond
	DefaultSettle        = 50 * time.Millisecond
)

// Config holds the driver's construction parameters.
type Config struct {
	// Size is the grid side length N.
	Size int
	// MaxIterations bounds the steps of one run; zero means unbounded.
	MaxIterations int
	// CheckEvery is the convergence and range check cadence k.
	CheckEvery int
	// Pacing is the delay between steps; zero runs unpaced.
	Pacing time.Duration
	// Settle is the debounce after stopping a previous run in Start.
	Settle  time.Duration
	Variant kernel.Variant
}

// DefaultConfig returns the stock driver settings.
func DefaultConfig() Config {
	return Config{
		Size:          DefaultSize,
		MaxIterations: DefaultMaxIterations,
		CheckEvery:    DefaultCheckEvery,
		Pacing:        DefaultPacing,
		Settle:        DefaultSettle,
		Variant:       kernel.Relaxed,
	}
}

func (c Config) normalized() Config {
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.CheckEvery <= 0 {
		c.CheckEvery = DefaultCheckEvery
	}
	if c.MaxIterations < 0 {
		c.MaxIterations = 0
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	return c
}
