//go:build !ebiten

package ui

import "flowfield/internal/field"

// Overlay is a no-op placeholder for headless builds.
type Overlay struct{}

// NewOverlay returns nil in the headless build.
func NewOverlay(int) *Overlay { return nil }

// DrawFlow is a no-op in the headless build.
func (o *Overlay) DrawFlow(any, []field.Vec2, int) {}
