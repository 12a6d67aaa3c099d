package render

import (
	"image/color"
	"math"

	"flowfield/internal/estimate"
	"flowfield/internal/terrain"
)

// TerrainPalette is indexed by terrain.Class.
var TerrainPalette = []color.RGBA{
	terrain.Open:       {R: 232, G: 230, B: 222, A: 255},
	terrain.Difficult:  {R: 190, G: 150, B: 88, A: 255},
	terrain.Impassable: {R: 36, G: 36, B: 44, A: 255},
}

// GoalColor marks the goal cell.
var GoalColor = color.RGBA{R: 220, G: 40, B: 60, A: 255}

// heatStops map normalised potential to colour, far (cold) to near (hot).
var heatStops = []struct {
	t   float64
	col color.RGBA
}{
	{0.0, color.RGBA{R: 18, G: 20, B: 48, A: 255}},
	{0.25, color.RGBA{R: 40, G: 70, B: 150, A: 255}},
	{0.5, color.RGBA{R: 60, G: 160, B: 140, A: 255}},
	{0.75, color.RGBA{R: 230, G: 190, B: 70, A: 255}},
	{1.0, color.RGBA{R: 250, G: 245, B: 225, A: 255}},
}

// fillPaletteRGBA converts cell values into RGBA pixels using a palette. When
// the palette is empty the buffer is cleared to transparent black.
func fillPaletteRGBA[T ~uint8](buf []byte, cells []T, palette []color.RGBA) {
	if len(palette) == 0 {
		clear(buf[:4*len(cells)])
		return
	}
	last := len(palette) - 1
	for i, c := range cells {
		idx := int(c)
		if idx > last {
			idx = last
		}
		putRGBA(buf, i, palette[idx])
	}
}

func putRGBA(buf []byte, i int, col color.RGBA) {
	base := i * 4
	buf[base+0] = col.R
	buf[base+1] = col.G
	buf[base+2] = col.B
	buf[base+3] = col.A
}

// FillTerrainRGBA paints the terrain classes and the goal into buf, which
// must hold 4 bytes per cell.
func FillTerrainRGBA(buf []byte, g *terrain.Grid, goal terrain.Cell) {
	fillPaletteRGBA(buf, g.Cells(), TerrainPalette)
	if g.Contains(goal) {
		putRGBA(buf, g.Index(goal.X, goal.Y), GoalColor)
	}
}

// Intensity maps a potential value into [0, 1] for display. The range
// estimate stretches or compresses the scale; ResetValue is neutral.
func Intensity(v float32, maxEstimate float64) float64 {
	if v <= 0 {
		return 0
	}
	if maxEstimate <= 0 {
		maxEstimate = estimate.ResetValue
	}
	return math.Sqrt(clamp01(float64(v) * estimate.ResetValue / maxEstimate))
}

// FillPotentialRGBA paints a heat map of pot into buf. Impassable cells keep
// the terrain colour so walls stay visible.
func FillPotentialRGBA(buf []byte, pot []float32, g *terrain.Grid, maxEstimate float64) {
	cells := g.Cells()
	for i, v := range pot {
		if i < len(cells) && cells[i] == terrain.Impassable {
			putRGBA(buf, i, TerrainPalette[terrain.Impassable])
			continue
		}
		putRGBA(buf, i, HeatColor(Intensity(v, maxEstimate)))
	}
}

// HeatColor interpolates the heat ramp at t.
func HeatColor(t float64) color.RGBA {
	t = clamp01(t)
	for i := 1; i < len(heatStops); i++ {
		curr := heatStops[i]
		if t <= curr.t {
			prev := heatStops[i-1]
			span := curr.t - prev.t
			var local float64
			if span > 0 {
				local = (t - prev.t) / span
			}
			return lerpRGBA(prev.col, curr.col, local)
		}
	}
	return heatStops[len(heatStops)-1].col
}

func lerpRGBA(a, b color.RGBA, t float64) color.RGBA {
	t = clamp01(t)
	return color.RGBA{
		R: lerpComponent(a.R, b.R, t),
		G: lerpComponent(a.G, b.G, t),
		B: lerpComponent(a.B, b.B, t),
		A: lerpComponent(a.A, b.A, t),
	}
}

func lerpComponent(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
