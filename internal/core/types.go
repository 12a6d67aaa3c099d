package core

// Size describes the dimensions of a simulation grid.
type Size struct {
	W int
	H int
}

// Cells returns the number of cells covered by the size.
func (s Size) Cells() int { return s.W * s.H }

// Contains reports whether (x, y) lies on the grid.
func (s Size) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.W && y < s.H
}

// Index returns the row-major slice index for coordinates (x, y).
func (s Size) Index(x, y int) int { return y*s.W + x }

// Square returns an n×n size, clamping n to at least one cell.
func Square(n int) Size {
	if n <= 0 {
		n = 1
	}
	return Size{W: n, H: n}
}
