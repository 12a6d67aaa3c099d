package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"flowfield/internal/estimate"
	"flowfield/internal/terrain"
)

func pixel(buf []byte, i int) color.RGBA {
	return color.RGBA{R: buf[4*i], G: buf[4*i+1], B: buf[4*i+2], A: buf[4*i+3]}
}

func TestFillPaletteClampsAndClears(t *testing.T) {
	buf := make([]byte, 8)
	fillPaletteRGBA(buf, []uint8{0, 9}, []color.RGBA{{R: 1, A: 255}, {G: 2, A: 255}})
	assert.Equal(t, color.RGBA{R: 1, A: 255}, pixel(buf, 0))
	assert.Equal(t, color.RGBA{G: 2, A: 255}, pixel(buf, 1))

	fillPaletteRGBA(buf, []uint8{0, 1}, nil)
	assert.Equal(t, make([]byte, 8), buf)
}

func TestFillTerrainMarksGoal(t *testing.T) {
	g := terrain.New(2)
	g.Set(1, 0, terrain.Impassable)
	g.Set(0, 1, terrain.Difficult)
	buf := make([]byte, 16)
	FillTerrainRGBA(buf, g, terrain.Cell{X: 1, Y: 1})

	assert.Equal(t, TerrainPalette[terrain.Open], pixel(buf, 0))
	assert.Equal(t, TerrainPalette[terrain.Impassable], pixel(buf, 1))
	assert.Equal(t, TerrainPalette[terrain.Difficult], pixel(buf, 2))
	assert.Equal(t, GoalColor, pixel(buf, 3))
}

func TestIntensity(t *testing.T) {
	assert.Zero(t, Intensity(0, 10))
	assert.InDelta(t, 1, Intensity(1, estimate.ResetValue), 1e-9)
	assert.InDelta(t, 0.5, Intensity(0.25, estimate.ResetValue), 1e-9)
	// A larger range estimate compresses the scale.
	assert.Less(t, Intensity(1, 40), Intensity(1, 20))
	assert.InDelta(t, 1, Intensity(1, 0), 1e-9)
}

func TestFillPotentialKeepsWalls(t *testing.T) {
	g := terrain.New(2)
	g.Set(0, 0, terrain.Impassable)
	buf := make([]byte, 16)
	FillPotentialRGBA(buf, []float32{0, 1, 0.25, 0}, g, estimate.ResetValue)

	assert.Equal(t, TerrainPalette[terrain.Impassable], pixel(buf, 0))
	assert.Equal(t, HeatColor(1), pixel(buf, 1))
	assert.Equal(t, HeatColor(0.5), pixel(buf, 2))
	assert.Equal(t, HeatColor(0), pixel(buf, 3))
}

func TestHeatColorEndpoints(t *testing.T) {
	assert.Equal(t, heatStops[0].col, HeatColor(-1))
	assert.Equal(t, heatStops[len(heatStops)-1].col, HeatColor(2))
	assert.Equal(t, heatStops[2].col, HeatColor(0.5))
}
