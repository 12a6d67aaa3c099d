package app

import (
	"fmt"

	"flowfield/internal/terrain"
)

// Brush selects what a mouse stroke paints.
type Brush uint8

const (
	BrushOpen Brush = iota
	BrushDifficult
	BrushImpassable
	BrushGoal
)

func (b Brush) String() string {
	switch b {
	case BrushOpen:
		return "open"
	case BrushDifficult:
		return "difficult"
	case BrushImpassable:
		return "impassable"
	case BrushGoal:
		return "goal"
	default:
		return fmt.Sprintf("brush(%d)", uint8(b))
	}
}

// Drags reports whether the brush paints while the mouse moves. Goal
// placement happens on press only.
func (b Brush) Drags() bool { return b != BrushGoal }

// Edit builds the edit the brush applies at c.
func (b Brush) Edit(c terrain.Cell) terrain.Edit {
	e := terrain.Edit{X: c.X, Y: c.Y}
	switch b {
	case BrushGoal:
		e.Goal = true
	case BrushDifficult:
		e.Class = terrain.Difficult
	case BrushImpassable:
		e.Class = terrain.Impassable
	default:
		e.Class = terrain.Open
	}
	return e
}

// CellAt maps a cursor position to the grid cell under it.
func CellAt(px, py, scale, n int) (terrain.Cell, bool) {
	if scale <= 0 || px < 0 || py < 0 {
		return terrain.Cell{}, false
	}
	c := terrain.Cell{X: px / scale, Y: py / scale}
	if c.X >= n || c.Y >= n {
		return terrain.Cell{}, false
	}
	return c, true
}

// Stroke turns mouse samples into edits, emitting each cell once per stroke.
type Stroke struct {
	brush  Brush
	active bool
	seen   map[terrain.Cell]struct{}
}

// Begin starts a stroke with brush b at c.
func (s *Stroke) Begin(b Brush, c terrain.Cell) (terrain.Edit, bool) {
	s.brush = b
	s.active = b.Drags()
	s.seen = map[terrain.Cell]struct{}{c: {}}
	return b.Edit(c), true
}

// Move extends an active stroke to c.
func (s *Stroke) Move(c terrain.Cell) (terrain.Edit, bool) {
	if !s.active {
		return terrain.Edit{}, false
	}
	if _, ok := s.seen[c]; ok {
		return terrain.Edit{}, false
	}
	s.seen[c] = struct{}{}
	return s.brush.Edit(c), true
}

// End finishes the stroke.
func (s *Stroke) End() {
	s.active = false
	s.seen = nil
}

// Active reports whether a dragging stroke is in progress.
func (s *Stroke) Active() bool { return s.active }
