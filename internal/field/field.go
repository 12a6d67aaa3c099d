// Package field defines the potential ping-pong slots and flow vectors shared
// by kernels, backends and the driver.
package field

// Vec2 is an un-normalized flow vector; its magnitude carries gradient strength.
type Vec2 struct {
	X, Y float32
}

// IsZero reports whether both components are zero.
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Slot names one of the two potential buffers.
type Slot uint8

const (
	SlotA Slot = iota
	SlotB
)

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

func (s Slot) String() string {
	if s == SlotA {
		return "A"
	}
	return "B"
}

// PingPong tracks which potential slot holds the committed field. The
// alternate slot is the destination of the next propagation step.
type PingPong struct {
	current Slot
}

// Current returns the slot holding the last committed potential field.
func (p *PingPong) Current() Slot { return p.current }

// Alternate returns the slot the next step writes into.
func (p *PingPong) Alternate() Slot { return p.current.Other() }

// Swap commits the alternate slot, making it current.
func (p *PingPong) Swap() { p.current = p.current.Other() }

// Reset makes SlotA current again.
func (p *PingPong) Reset() { p.current = SlotA }

// SeedPotential returns a buffer of cells zeros with 1.0 at goal.
func SeedPotential(cells, goal int) []float32 {
	buf := make([]float32, cells)
	if goal >= 0 && goal < cells {
		buf[goal] = 1
	}
	return buf
}

// ZeroFlow returns a cleared flow buffer of cells interleaved (x, y) pairs.
func ZeroFlow(cells int) []float32 {
	return make([]float32, 2*cells)
}

// UnpackFlow converts an interleaved (x, y) buffer into vectors.
func UnpackFlow(raw []float32) []Vec2 {
	out := make([]Vec2, len(raw)/2)
	for i := range out {
		out[i] = Vec2{X: raw[2*i], Y: raw[2*i+1]}
	}
	return out
}
