// Package kernel holds the pure per-cell update rules that compute backends
// execute in parallel. Every function here reads only its inputs and returns
// the value for a single cell, so results never depend on evaluation order.
package kernel

import (
	"fmt"
	"math"
	"strings"

	"flowfield/internal/field"
)

// Variant selects the neighborhood used by propagation and flow derivation.
type Variant uint8

const (
	// Relaxed uses the 8-neighborhood with diagonal edges weighted by √2.
	Relaxed Variant = iota
	// NoRelaxation restricts both kernels to the 4 axis-aligned neighbors.
	NoRelaxation
)

func (v Variant) String() string {
	switch v {
	case Relaxed:
		return "relaxed"
	case NoRelaxation:
		return "no-relaxation"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// ParseVariant maps a configuration name to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relaxed", "relaxation", "8":
		return Relaxed, nil
	case "no-relaxation", "norelaxation", "none", "axis", "4":
		return NoRelaxation, nil
	}
	return Relaxed, fmt.Errorf("unknown propagation variant %q", s)
}

// Toggle returns the other variant.
func (v Variant) Toggle() Variant {
	if v == Relaxed {
		return NoRelaxation
	}
	return Relaxed
}

var invSqrt2 = float32(1 / math.Sqrt2)

type neighbor struct {
	dx, dy int
	// inv is 1/edgeWeight.
	inv float32
	dir field.Vec2
}

var axisNeighbors = []neighbor{
	{dx: 1, dy: 0, inv: 1, dir: field.Vec2{X: 1}},
	{dx: -1, dy: 0, inv: 1, dir: field.Vec2{X: -1}},
	{dx: 0, dy: 1, inv: 1, dir: field.Vec2{Y: 1}},
	{dx: 0, dy: -1, inv: 1, dir: field.Vec2{Y: -1}},
}

var mooreNeighbors = append(append([]neighbor(nil), axisNeighbors...),
	neighbor{dx: 1, dy: 1, inv: invSqrt2, dir: field.Vec2{X: invSqrt2, Y: invSqrt2}},
	neighbor{dx: -1, dy: 1, inv: invSqrt2, dir: field.Vec2{X: -invSqrt2, Y: invSqrt2}},
	neighbor{dx: -1, dy: -1, inv: invSqrt2, dir: field.Vec2{X: -invSqrt2, Y: -invSqrt2}},
	neighbor{dx: 1, dy: -1, inv: invSqrt2, dir: field.Vec2{X: invSqrt2, Y: -invSqrt2}},
)

func (v Variant) neighbors() []neighbor {
	if v == NoRelaxation {
		return axisNeighbors
	}
	return mooreNeighbors
}

// Neighbors returns the size of the variant's neighborhood.
func (v Variant) Neighbors() int { return len(v.neighbors()) }

// Lattice bundles the read-only inputs shared by every cell of an invocation.
type Lattice struct {
	N       int
	Weights []float32
	Goal    int
}

// Cells returns the number of cells in the lattice.
func (l Lattice) Cells() int { return l.N * l.N }

// PropagateFunc computes the next potential of one cell from a source buffer.
type PropagateFunc func(l Lattice, src []float32, idx int) float32

// FlowFunc derives the flow vector of one cell from a potential snapshot.
type FlowFunc func(l Lattice, pot []float32, idx int) field.Vec2

// PropagateRelaxed is the 8-neighborhood propagation rule.
func PropagateRelaxed(l Lattice, src []float32, idx int) float32 {
	return propagate(mooreNeighbors, l, src, idx)
}

// PropagateAxis is the 4-neighborhood propagation rule.
func PropagateAxis(l Lattice, src []float32, idx int) float32 {
	return propagate(axisNeighbors, l, src, idx)
}

// FlowRelaxed derives flow over the 8-neighborhood.
func FlowRelaxed(l Lattice, pot []float32, idx int) field.Vec2 {
	return flow(mooreNeighbors, l, pot, idx)
}

// FlowAxis derives flow over the 4-neighborhood.
func FlowAxis(l Lattice, pot []float32, idx int) field.Vec2 {
	return flow(axisNeighbors, l, pot, idx)
}

// Propagator returns the propagation rule of the variant.
func (v Variant) Propagator() PropagateFunc {
	if v == NoRelaxation {
		return PropagateAxis
	}
	return PropagateRelaxed
}

// Flower returns the flow rule matching the variant's neighborhood.
func (v Variant) Flower() FlowFunc {
	if v == NoRelaxation {
		return FlowAxis
	}
	return FlowRelaxed
}

// The goal is pinned to 1. Impassable cells hold 0. Any other cell takes the
// best neighbor potential scaled by its own terrain weight and divided by the
// edge length; off-grid neighbors offer nothing.
func propagate(nb []neighbor, l Lattice, src []float32, idx int) float32 {
	if idx == l.Goal {
		return 1
	}
	w := l.Weights[idx]
	if w <= 0 {
		return 0
	}
	n := l.N
	x, y := idx%n, idx/n
	var best float32
	for _, o := range nb {
		nx, ny := x+o.dx, y+o.dy
		if nx < 0 || ny < 0 || nx >= n || ny >= n {
			continue
		}
		if c := src[ny*n+nx] * w * o.inv; c > best {
			best = c
		}
	}
	return best
}

func flow(nb []neighbor, l Lattice, pot []float32, idx int) field.Vec2 {
	own := pot[idx]
	if l.Weights[idx] <= 0 || own == 0 {
		return field.Vec2{}
	}
	n := l.N
	x, y := idx%n, idx/n
	var v field.Vec2
	for _, o := range nb {
		nx, ny := x+o.dx, y+o.dy
		if nx < 0 || ny < 0 || nx >= n || ny >= n {
			continue
		}
		ni := ny*n + nx
		p := pot[ni]
		if l.Weights[ni] <= 0 || p == 0 {
			continue
		}
		d := p - own
		v.X += d * o.dir.X
		v.Y += d * o.dir.Y
	}
	return v
}

// PropagateRange writes the next potential of cells [lo, hi) into dst.
func PropagateRange(fn PropagateFunc, l Lattice, src, dst []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		dst[i] = fn(l, src, i)
	}
}

// FlowRange writes the flow of cells [lo, hi) into dst as interleaved pairs.
func FlowRange(fn FlowFunc, l Lattice, pot, dst []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		v := fn(l, pot, i)
		dst[2*i] = v.X
		dst[2*i+1] = v.Y
	}
}
