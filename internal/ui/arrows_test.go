package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"flowfield/internal/field"
)

func TestFlowArrowCalm(t *testing.T) {
	a := FlowArrow(field.Vec2{}, 10, 20, 16)
	assert.True(t, a.Calm)
	assert.Equal(t, 10.0, a.X)
	assert.Equal(t, 20.0, a.Y)
}

func TestFlowArrowPointsAlongVector(t *testing.T) {
	// +X is right and +Y is down in both grid and screen space.
	a := FlowArrow(field.Vec2{X: -0.7}, 50, 50, 20)
	assert.False(t, a.Calm)
	assert.InDelta(t, 0.7, a.Strength, 1e-6)
	assert.Greater(t, a.Body.X1, a.Body.X2, "body runs from tail to head")
	assert.InDelta(t, 50, a.Body.Y1, 1e-9)
	assert.Less(t, a.Left.X1, 50.0, "tip lies left of centre")

	down := FlowArrow(field.Vec2{Y: 2}, 0, 0, 20)
	assert.Equal(t, 1.0, down.Strength)
	assert.Greater(t, down.Left.Y1, 0.0)
}

func TestFlowArrowLengthGrowsWithStrength(t *testing.T) {
	weak := FlowArrow(field.Vec2{X: 0.01}, 0, 0, 20)
	strong := FlowArrow(field.Vec2{X: 1}, 0, 0, 20)
	assert.Less(t, weak.Left.X1-weak.Body.X1, strong.Left.X1-strong.Body.X1)
}

func TestSampleStride(t *testing.T) {
	assert.Equal(t, 1, SampleStride(16, 12))
	assert.Equal(t, 3, SampleStride(4, 12))
	assert.Equal(t, 12, SampleStride(0, 12))
}
