//go:build ebiten

package ui

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"flowfield/internal/field"
)

const minArrowSpan = 12.0

// Overlay draws the flow field as arrows on top of the grid image.
type Overlay struct {
	scale int
	pixel *ebiten.Image
}

// NewOverlay constructs an overlay for a grid drawn at scale pixels per cell.
func NewOverlay(scale int) *Overlay {
	if scale <= 0 {
		scale = 1
	}
	o := &Overlay{scale: scale}
	o.pixel = ebiten.NewImage(1, 1)
	o.pixel.Fill(color.White)
	return o
}

// DrawFlow renders one arrow per sampled cell. A nil flow field is stale and
// draws nothing.
func (o *Overlay) DrawFlow(screen *ebiten.Image, flow []field.Vec2, n int) {
	if o == nil || flow == nil || len(flow) != n*n {
		return
	}
	stride := SampleStride(o.scale, minArrowSpan)
	span := float64(stride * o.scale)
	half := float64(o.scale) * 0.5
	for y := stride / 2; y < n; y += stride {
		for x := stride / 2; x < n; x += stride {
			cx := float64(x*o.scale) + half
			cy := float64(y*o.scale) + half
			a := FlowArrow(flow[y*n+x], cx, cy, span)
			if a.Calm {
				o.drawPoint(screen, a.X, a.Y, math.Max(span*0.12, 1), color.RGBA{R: 90, G: 130, B: 170, A: 120})
				continue
			}
			col := interpolateColor(a.Strength)
			o.drawLine(screen, a.Body, col)
			o.drawLine(screen, a.Left, col)
			o.drawLine(screen, a.Right, col)
		}
	}
}

func (o *Overlay) drawPoint(screen *ebiten.Image, x, y, size float64, col color.RGBA) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(size, size)
	op.GeoM.Translate(x-size*0.5, y-size*0.5)
	op.ColorScale.ScaleWithColor(col)
	screen.DrawImage(o.pixel, op)
}

func (o *Overlay) drawLine(screen *ebiten.Image, s Segment, col color.RGBA) {
	dx := s.X2 - s.X1
	dy := s.Y2 - s.Y1
	length := math.Hypot(dx, dy)
	if length <= 1e-4 || s.Thickness <= 0 {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(length, s.Thickness)
	op.GeoM.Translate(0, -s.Thickness/2)
	op.GeoM.Rotate(math.Atan2(dy, dx))
	op.GeoM.Translate(s.X1, s.Y1)
	op.ColorScale.ScaleWithColor(col)
	screen.DrawImage(o.pixel, op)
}

func interpolateColor(t float64) color.RGBA {
	t = clamp01(t)
	return color.RGBA{
		R: uint8(math.Round(80 + 70*t)),
		G: uint8(math.Round(170 + 70*t)),
		B: uint8(math.Round(230 + 20*t)),
		A: uint8(math.Round(150 + 90*t)),
	}
}
