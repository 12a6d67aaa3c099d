package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPingPongSwap(t *testing.T) {
	var p PingPong
	assert.Equal(t, SlotA, p.Current())
	assert.Equal(t, SlotB, p.Alternate())

	p.Swap()
	assert.Equal(t, SlotB, p.Current())
	assert.Equal(t, SlotA, p.Alternate())

	p.Swap()
	p.Swap()
	p.Reset()
	assert.Equal(t, SlotA, p.Current())
}

func TestSeedPotential(t *testing.T) {
	buf := SeedPotential(4, 2)
	assert.Equal(t, []float32{0, 0, 1, 0}, buf)

	assert.Equal(t, []float32{0, 0}, SeedPotential(2, 5), "out-of-range goal leaves the buffer zeroed")
}

func TestUnpackFlow(t *testing.T) {
	vs := UnpackFlow([]float32{1, 2, 0, 0})
	assert.Equal(t, []Vec2{{X: 1, Y: 2}, {}}, vs)
	assert.True(t, vs[1].IsZero())
	assert.Len(t, ZeroFlow(3), 6)
}
