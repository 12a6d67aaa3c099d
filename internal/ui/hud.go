//go:build ebiten

package ui

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"flowfield/internal/core"
)

const (
	panelPadding   = 12
	headerBaseline = 14
	lineSpacing    = 18
	groupSpacing   = 10
)

type parameterProvider interface {
	Parameters() core.ParameterSnapshot
}

// HUD renders the parameter panel to the right of the grid view.
type HUD struct {
	source     parameterProvider
	width      int
	panel      *ebiten.Image
	lastHeight int
	snapshot   core.ParameterSnapshot
	help       []string
}

// NewHUD constructs a HUD of the given panel width. help lines are printed
// beneath the parameters.
func NewHUD(source parameterProvider, width int, help []string) *HUD {
	if width < 0 {
		width = 0
	}
	return &HUD{source: source, width: width, help: help}
}

// Width returns the panel width in pixels.
func (h *HUD) Width() int {
	if h == nil {
		return 0
	}
	return h.width
}

// Update refreshes the cached parameter snapshot.
func (h *HUD) Update() {
	if h == nil || h.source == nil {
		return
	}
	h.snapshot = h.source.Parameters()
}

// Draw paints the HUD panel at offsetX with the given height.
func (h *HUD) Draw(screen *ebiten.Image, offsetX, height int) {
	if h == nil || h.width <= 0 || height <= 0 {
		return
	}
	if h.panel == nil || h.lastHeight != height {
		h.panel = ebiten.NewImage(h.width, height)
		h.lastHeight = height
	}
	h.panel.Fill(color.RGBA{R: 16, G: 16, B: 20, A: 255})
	h.drawParameters()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(offsetX), 0)
	screen.DrawImage(h.panel, op)
}

func (h *HUD) drawParameters() {
	face := basicfont.Face7x13
	header := color.RGBA{R: 200, G: 200, B: 210, A: 255}
	label := color.RGBA{R: 160, G: 160, B: 170, A: 255}
	value := color.RGBA{R: 220, G: 220, B: 230, A: 255}

	y := panelPadding + headerBaseline
	for _, g := range h.snapshot.Groups {
		text.Draw(h.panel, g.Name, face, panelPadding, y, header)
		y += lineSpacing
		for _, p := range g.Params {
			text.Draw(h.panel, p.Label, face, panelPadding, y, label)
			bounds := text.BoundString(face, p.Value)
			text.Draw(h.panel, p.Value, face, h.width-panelPadding-bounds.Dx(), y, value)
			y += lineSpacing
		}
		y += groupSpacing
	}
	for _, line := range h.help {
		text.Draw(h.panel, line, face, panelPadding, y, label)
		y += lineSpacing
	}
}

// Title formats the window title for a driver.
func Title(source parameterProvider) string {
	snap := source.Parameters()
	size, _ := snap.Lookup("size")
	variant, _ := snap.Lookup("variant")
	return fmt.Sprintf("flowfield %sx%s (%s)", size.Value, size.Value, variant.Value)
}
