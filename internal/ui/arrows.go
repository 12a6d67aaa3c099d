package ui

import (
	"math"

	"flowfield/internal/field"
)

const (
	calmThreshold    = 1e-4
	maxSpeedEstimate = 1.0
	headAngle        = math.Pi / 6
	minThickness     = 0.08
	maxThickness     = 0.16
)

// Segment is a line in screen space.
type Segment struct {
	X1, Y1, X2, Y2 float64
	Thickness      float64
}

// Arrow is the screen geometry of one flow sample. Calm samples carry no
// segments and are drawn as a dot at (X, Y).
type Arrow struct {
	X, Y     float64
	Calm     bool
	Strength float64
	Body     Segment
	Left     Segment
	Right    Segment
}

// FlowArrow lays out an arrow centred on (cx, cy) pointing along v. span is
// the pixel distance between neighbouring samples.
func FlowArrow(v field.Vec2, cx, cy, span float64) Arrow {
	a := Arrow{X: cx, Y: cy}
	vx, vy := float64(v.X), float64(v.Y)
	speed := math.Hypot(vx, vy)
	if speed < calmThreshold || span <= 0 {
		a.Calm = true
		return a
	}

	nx := vx / speed
	ny := vy / speed
	a.Strength = clamp01(speed / maxSpeedEstimate)
	minLength := span * 0.35
	maxLength := span * 0.7
	length := minLength + (maxLength-minLength)*math.Sqrt(a.Strength)
	headLength := length * 0.3
	tailLength := length * 0.4
	tipX := cx + nx*(length-tailLength)
	tipY := cy + ny*(length-tailLength)

	thickness := span * (minThickness + (maxThickness-minThickness)*a.Strength)
	if thickness < 1 {
		thickness = 1
	}
	a.Body = Segment{
		X1: cx - nx*tailLength, Y1: cy - ny*tailLength,
		X2: tipX - nx*headLength, Y2: tipY - ny*headLength,
		Thickness: thickness,
	}
	angle := math.Atan2(ny, nx)
	a.Left = Segment{
		X1: tipX, Y1: tipY,
		X2: tipX - math.Cos(angle+headAngle)*headLength,
		Y2: tipY - math.Sin(angle+headAngle)*headLength,
		Thickness: thickness * 0.85,
	}
	a.Right = Segment{
		X1: tipX, Y1: tipY,
		X2: tipX - math.Cos(angle-headAngle)*headLength,
		Y2: tipY - math.Sin(angle-headAngle)*headLength,
		Thickness: thickness * 0.85,
	}
	return a
}

// SampleStride returns how many cells to skip between arrows so that arrows
// are at least minSpan pixels apart.
func SampleStride(scale int, minSpan float64) int {
	if scale <= 0 {
		scale = 1
	}
	stride := int(math.Ceil(minSpan / float64(scale)))
	if stride < 1 {
		stride = 1
	}
	return stride
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
