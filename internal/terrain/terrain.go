// Package terrain holds the passability grid, the edits applied to it and its
// CSV persistence.
package terrain

import (
	"fmt"
	"math"

	"flowfield/internal/core"
)

// Class enumerates the passability of a single cell.
type Class uint8

const (
	Open Class = iota
	Difficult
	Impassable
)

// Weights multiplied into the potential of a cell of the given class.
const (
	WeightOpen       float32 = 1.0
	WeightDifficult  float32 = 0.3
	WeightImpassable float32 = 0.0
)

// Valid reports whether c is one of the defined classes.
func (c Class) Valid() bool { return c <= Impassable }

// Weight returns the propagation weight of the class.
func (c Class) Weight() float32 {
	switch c {
	case Difficult:
		return WeightDifficult
	case Impassable:
		return WeightImpassable
	default:
		return WeightOpen
	}
}

func (c Class) String() string {
	switch c {
	case Open:
		return "open"
	case Difficult:
		return "difficult"
	case Impassable:
		return "impassable"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// ClassFromWeight maps a persisted cell value back to its class. Only the
// three canonical weights are accepted.
func ClassFromWeight(v float64) (Class, bool) {
	const eps = 1e-6
	switch {
	case math.Abs(v-float64(WeightOpen)) < eps:
		return Open, true
	case math.Abs(v-float64(WeightDifficult)) < eps:
		return Difficult, true
	case math.Abs(v-float64(WeightImpassable)) < eps:
		return Impassable, true
	}
	return Open, false
}

// Cell addresses a grid coordinate.
type Cell struct {
	X, Y int
}

// Grid is the N×N terrain classification owned by the simulation driver.
type Grid struct {
	*core.Grid[Class]
}

// New returns an all-Open n×n grid.
func New(n int) *Grid {
	s := core.Square(n)
	return &Grid{Grid: core.NewGrid[Class](s.W, s.H)}
}

// N returns the side length of the grid.
func (g *Grid) N() int { return g.Size().W }

// Contains reports whether c lies on the grid.
func (g *Grid) Contains(c Cell) bool { return g.Size().Contains(c.X, c.Y) }

// Center returns the cell at the middle of the grid.
func (g *Grid) Center() Cell {
	n := g.N()
	return Cell{X: n / 2, Y: n / 2}
}

// Clear resets every cell to Open.
func (g *Grid) Clear() { g.Fill(Open) }

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid { return &Grid{Grid: g.Grid.Clone()} }

// Weights converts the grid into the row-major weight buffer consumed by
// compute backends.
func (g *Grid) Weights() []float32 {
	cells := g.Cells()
	out := make([]float32, len(cells))
	for i, c := range cells {
		out[i] = c.Weight()
	}
	return out
}

// Counts returns how many cells are impassable and how many are difficult.
func (g *Grid) Counts() (impassable, difficult int) {
	for _, c := range g.Cells() {
		switch c {
		case Impassable:
			impassable++
		case Difficult:
			difficult++
		}
	}
	return impassable, difficult
}

// NearestOpen searches square rings around from for the closest Open cell.
// It returns from unchanged when no Open cell exists within half the grid.
func (g *Grid) NearestOpen(from Cell) Cell {
	n := g.N()
	for radius := 0; radius < (n+1)/2+1; radius++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				c := Cell{X: from.X + dx, Y: from.Y + dy}
				if g.Contains(c) && g.At(c.X, c.Y) == Open {
					return c
				}
			}
		}
	}
	return from
}

// Edit is a discrete change request arriving from an editing surface. When
// Goal is set the edit relocates the goal and Class is ignored.
type Edit struct {
	X, Y  int
	Class Class
	Goal  bool
}

// Cell returns the coordinate targeted by the edit.
func (e Edit) Cell() Cell { return Cell{X: e.X, Y: e.Y} }
