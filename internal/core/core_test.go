package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampPacing(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{0, 0},
		{-5 * time.Millisecond, 0},
		{time.Millisecond, MinPacing},
		{100 * time.Millisecond, 100 * time.Millisecond},
		{5 * time.Second, MaxPacing},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClampPacing(tc.in), "ClampPacing(%v)", tc.in)
	}
}

func TestPacingForSpeed(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, PacingForSpeed(MinSpeed))
	assert.Equal(t, 410*time.Millisecond, PacingForSpeed(DefaultSpeed))
	assert.Equal(t, MinPacing, PacingForSpeed(MaxSpeed))
	assert.Equal(t, 500*time.Millisecond, PacingForSpeed(-3))
	assert.Equal(t, MinPacing, PacingForSpeed(90))
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, Sleep(ctx, time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.True(t, Sleep(context.Background(), time.Millisecond))
	assert.True(t, Sleep(context.Background(), 0))
}

func TestGridIndexing(t *testing.T) {
	g := NewGrid[int](3, 2)
	g.Set(2, 1, 7)
	assert.Equal(t, 7, g.Cells()[5])
	assert.Equal(t, 7, g.At(2, 1))

	clone := g.Clone()
	clone.Set(2, 1, 1)
	assert.Equal(t, 7, g.At(2, 1), "clone must not alias the original")

	s := g.Size()
	assert.True(t, s.Contains(0, 0))
	assert.False(t, s.Contains(3, 0))
	assert.False(t, s.Contains(0, -1))
	assert.Equal(t, 4, s.Index(1, 1))
}

func TestParameterLookup(t *testing.T) {
	snap := ParameterSnapshot{Groups: []ParameterGroup{
		{Name: "Run", Params: []Parameter{IntParam("iteration", "Iteration", 4)}},
		{Name: "Field", Params: []Parameter{FloatParam("max_estimate", "Max estimate", 12.5)}},
	}}
	p, ok := snap.Lookup("max_estimate")
	assert.True(t, ok)
	assert.Equal(t, "12.5", p.Value)
	_, ok = snap.Lookup("missing")
	assert.False(t, ok)
}
