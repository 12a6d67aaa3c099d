package core

import (
	"context"
	"time"
)

const (
	// MinPacing is the shortest non-zero delay between simulation steps.
	MinPacing = 10 * time.Millisecond
	// MaxPacing is the longest delay between simulation steps.
	MaxPacing = 1000 * time.Millisecond
)

// ClampPacing constrains a step delay to [MinPacing, MaxPacing]. Zero and
// negative values disable pacing.
func ClampPacing(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if d < MinPacing {
		return MinPacing
	}
	if d > MaxPacing {
		return MaxPacing
	}
	return d
}

// Speed levels accepted by PacingForSpeed.
const (
	MinSpeed     = 1
	MaxSpeed     = 50
	DefaultSpeed = 10
)

// PacingForSpeed maps a speed level to a step delay: level 1 waits 500ms and
// each level above it shortens the delay by 10ms, bottoming out at MinPacing.
func PacingForSpeed(level int) time.Duration {
	if level < MinSpeed {
		level = MinSpeed
	}
	if level > MaxSpeed {
		level = MaxSpeed
	}
	return ClampPacing(time.Duration(510-10*level) * time.Millisecond)
}

// Sleep waits for d or until ctx is done, whichever happens first. It reports
// false when the wait was cut short by cancellation.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// FixedStep helps a render loop pull simulation state at a steady rate.
type FixedStep struct {
	step        time.Duration
	accumulator time.Duration
	last        time.Time
}

// NewFixedStep constructs a FixedStep controller targeting the given TPS.
func NewFixedStep(tps int) *FixedStep {
	if tps <= 0 {
		tps = 60
	}
	fs := &FixedStep{}
	fs.SetTPS(tps)
	fs.accumulator = fs.step
	return fs
}

// SetTPS changes the tick rate. It is safe to call from the main loop.
func (f *FixedStep) SetTPS(tps int) {
	if tps <= 0 {
		tps = 60
	}
	f.step = time.Second / time.Duration(tps)
}

// ShouldStep reports whether enough time has elapsed for another tick.
func (f *FixedStep) ShouldStep() bool {
	now := time.Now()
	if f.last.IsZero() {
		f.last = now
	}
	delta := now.Sub(f.last)
	f.last = now
	f.accumulator += delta
	if f.accumulator >= f.step {
		f.accumulator -= f.step
		return true
	}
	return false
}
