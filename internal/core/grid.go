package core

// Grid stores a 2D grid of cell values in row-major order.
type Grid[T any] struct {
	size Size
	data []T
}

// NewGrid allocates a grid with the given dimensions.
func NewGrid[T any](w, h int) *Grid[T] {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return &Grid[T]{size: Size{W: w, H: h}, data: make([]T, w*h)}
}

// Size returns the grid dimensions.
func (g *Grid[T]) Size() Size { return g.size }

// Cells exposes the backing slice so callers can read/write values directly.
func (g *Grid[T]) Cells() []T { return g.data }

// Index returns the linear slice index for coordinates (x, y).
func (g *Grid[T]) Index(x, y int) int { return y*g.size.W + x }

// At returns the value at (x, y). Callers are expected to bounds-check.
func (g *Grid[T]) At(x, y int) T { return g.data[g.Index(x, y)] }

// Set stores v at (x, y).
func (g *Grid[T]) Set(x, y int, v T) { g.data[g.Index(x, y)] = v }

// Fill sets every cell to v.
func (g *Grid[T]) Fill(v T) {
	for i := range g.data {
		g.data[i] = v
	}
}

// Clone returns a deep copy of the grid.
func (g *Grid[T]) Clone() *Grid[T] {
	out := &Grid[T]{size: g.size, data: make([]T, len(g.data))}
	copy(out.data, g.data)
	return out
}
