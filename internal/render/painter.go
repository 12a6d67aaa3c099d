//go:build ebiten

package render

import (
	"github.com/hajimehoshi/ebiten/v2"

	"flowfield/internal/terrain"
)

// GridPainter keeps one RGBA image per grid and redraws it from snapshots.
type GridPainter struct {
	n   int
	img *ebiten.Image
	buf []byte
}

// NewGridPainter allocates a painter for an n×n grid.
func NewGridPainter(n int) *GridPainter {
	return &GridPainter{n: n, img: ebiten.NewImage(n, n), buf: make([]byte, 4*n*n)}
}

// Size returns the side length of the underlying image.
func (gp *GridPainter) Size() int { return gp.n }

// Terrain draws the terrain classes and the goal.
func (gp *GridPainter) Terrain(dst *ebiten.Image, g *terrain.Grid, goal terrain.Cell, scale int) {
	if g == nil || g.N() != gp.n {
		return
	}
	FillTerrainRGBA(gp.buf, g, goal)
	gp.blit(dst, scale)
}

// Potential draws the heat map of pot, keeping walls and the goal visible.
func (gp *GridPainter) Potential(dst *ebiten.Image, pot []float32, g *terrain.Grid, goal terrain.Cell, maxEstimate float64, scale int) {
	if g == nil || g.N() != gp.n || len(pot) != gp.n*gp.n {
		return
	}
	FillPotentialRGBA(gp.buf, pot, g, maxEstimate)
	if g.Contains(goal) {
		putRGBA(gp.buf, g.Index(goal.X, goal.Y), GoalColor)
	}
	gp.blit(dst, scale)
}

func (gp *GridPainter) blit(dst *ebiten.Image, scale int) {
	gp.img.WritePixels(gp.buf)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(scale), float64(scale))
	dst.DrawImage(gp.img, op)
}
