//go:build ebiten

package app

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"flowfield/internal/core"
	"flowfield/internal/render"
	"flowfield/internal/sim"
	"flowfield/internal/terrain"
	"flowfield/internal/ui"
)

const hudWidth = 220

var helpLines = []string{
	"Space  start / stop",
	"R      reset grid",
	"V      toggle variant",
	"M      load maze",
	"1-4    open/difficult/wall/goal",
	"+ -    speed",
	"H F    heat / flow",
	"Q      quit",
}

// Game adapts a simulation driver to the ebiten.Game interface.
type Game struct {
	ctx     context.Context
	driver  *sim.Driver
	logger  *zap.Logger
	painter *render.GridPainter
	overlay *ui.Overlay
	hud     *ui.HUD
	pull    *core.FixedStep

	edits chan terrain.Edit
	maze  *terrain.Grid

	scale    int
	brush    Brush
	stroke   Stroke
	speed    int
	showHeat bool
	showFlow bool
	snap     sim.Snapshot
}

// New constructs a Game for the provided driver. maze is the terrain loaded
// by the M key. Edits are applied on a background goroutine until ctx ends.
func New(ctx context.Context, driver *sim.Driver, scale int, maze *terrain.Grid, logger *zap.Logger) *Game {
	if scale <= 0 {
		scale = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Game{
		ctx:      ctx,
		driver:   driver,
		logger:   logger.Named("app"),
		painter:  render.NewGridPainter(driver.Size()),
		overlay:  ui.NewOverlay(scale),
		pull:     core.NewFixedStep(30),
		edits:    make(chan terrain.Edit, 256),
		maze:     maze,
		scale:    scale,
		brush:    BrushImpassable,
		speed:    core.DefaultSpeed,
		showHeat: true,
		showFlow: true,
	}
	g.hud = ui.NewHUD(driver, hudWidth, helpLines)
	go func() {
		if err := driver.Consume(ctx, g.edits); err != nil && ctx.Err() == nil {
			g.logger.Error("Edit consumer stopped", zap.Error(err))
		}
	}()
	g.refresh()
	return g
}

// Close stops feeding edits to the driver.
func (g *Game) Close() { close(g.edits) }

// Update handles per-frame input and pulls a fresh snapshot at a fixed rate.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	g.handleKeys()
	g.handleMouse()

	if g.pull.ShouldStep() {
		g.refresh()
		g.hud.Update()
	}
	return nil
}

func (g *Game) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if g.driver.State() == sim.Running {
			g.driver.Stop()
		} else if err := g.driver.Start(g.ctx); err != nil {
			g.logger.Error("Start failed", zap.Error(err))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.driver.ResetAll(g.ctx); err != nil {
			g.logger.Error("Reset failed", zap.Error(err))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyV) {
		g.driver.SetVariant(g.driver.Variant().Toggle())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) && g.maze != nil {
		if err := g.driver.LoadTerrain(g.ctx, g.maze); err != nil {
			g.logger.Error("Maze load failed", zap.Error(err))
		}
	}
	for key, b := range map[ebiten.Key]Brush{
		ebiten.KeyDigit1: BrushOpen,
		ebiten.KeyDigit2: BrushDifficult,
		ebiten.KeyDigit3: BrushImpassable,
		ebiten.KeyDigit4: BrushGoal,
	} {
		if inpututil.IsKeyJustPressed(key) {
			g.brush = b
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.setSpeed(g.speed + 1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.setSpeed(g.speed - 1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		g.showHeat = !g.showHeat
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		g.showFlow = !g.showFlow
	}
}

func (g *Game) setSpeed(level int) {
	if level < core.MinSpeed || level > core.MaxSpeed {
		return
	}
	g.speed = level
	g.driver.SetPacing(core.PacingForSpeed(level))
}

func (g *Game) handleMouse() {
	px, py := ebiten.CursorPosition()
	cell, inside := CellAt(px, py, g.scale, g.driver.Size())
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		if inside {
			if e, ok := g.stroke.Begin(g.brush, cell); ok {
				g.send(e)
			}
		}
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		if inside {
			if e, ok := g.stroke.Move(cell); ok {
				g.send(e)
			}
		}
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		g.stroke.End()
	}
}

func (g *Game) send(e terrain.Edit) {
	select {
	case g.edits <- e:
	default:
		g.logger.Warn("Edit queue full; dropping edit", zap.Int("x", e.X), zap.Int("y", e.Y))
	}
}

func (g *Game) refresh() {
	snap, err := g.driver.Snapshot(g.ctx)
	if err != nil {
		g.logger.Warn("Snapshot failed", zap.Error(err))
		return
	}
	g.snap = snap
}

// Draw renders the current snapshot.
func (g *Game) Draw(screen *ebiten.Image) {
	s := g.snap
	if s.Terrain == nil {
		return
	}
	if g.showHeat {
		g.painter.Potential(screen, s.Potential, s.Terrain, s.Goal, s.MaxEstimate, g.scale)
	} else {
		g.painter.Terrain(screen, s.Terrain, s.Goal, g.scale)
	}
	if g.showFlow {
		g.overlay.DrawFlow(screen, s.Flow, s.Size)
	}
	g.hud.Draw(screen, s.Size*g.scale, s.Size*g.scale)
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	n := g.driver.Size()
	return n*g.scale + g.hud.Width(), n * g.scale
}

// Title returns the window title for the game.
func (g *Game) Title() string { return ui.Title(g.driver) }
