// Package sim orchestrates potential propagation, flow derivation and
// convergence checks over a compute backend.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowfield/internal/compute"
	"flowfield/internal/convergence"
	"flowfield/internal/core"
	"flowfield/internal/estimate"
	"flowfield/internal/field"
	"flowfield/internal/kernel"
	"flowfield/internal/terrain"
)

// ErrSizeMismatch reports a terrain grid whose side differs from the driver's.
var ErrSizeMismatch = errors.New("terrain size does not match driver")

// Driver owns the terrain, the goal and the device buffers, and runs the step
// loop on its own goroutine. All methods are safe for concurrent use; edits
// are serialized against whole steps.
type Driver struct {
	backend compute.Backend
	logger  *zap.Logger
	n       int
	cfg     Config

	// startMu serializes Start and ResetAll against each other.
	startMu sync.Mutex

	mu        sync.Mutex
	grid      *terrain.Grid
	goal      terrain.Cell
	variant   kernel.Variant
	pacing    time.Duration
	slots     field.PingPong
	iteration int
	steps     int
	converged bool
	flowFresh bool
	state     State
	detector  *convergence.Detector
	estimate  *estimate.Range
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
}

// Open constructs the backend named by opts and a driver on top of it.
func Open(ctx context.Context, opts compute.Options, cfg Config, logger *zap.Logger) (*Driver, error) {
	if opts.N == 0 {
		opts.N = cfg.normalized().Size
	}
	opts.Logger = logger
	b, err := compute.New(opts)
	if err != nil {
		return nil, &InitError{Backend: opts.Name, Err: err}
	}
	d, err := New(ctx, b, cfg, logger)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return d, nil
}

// New primes backend with an all-Open grid, the goal at the centre and seeded
// buffers. The driver starts Idle.
func New(ctx context.Context, backend compute.Backend, cfg Config, logger *zap.Logger) (*Driver, error) {
	if backend == nil {
		return nil, &InitError{Backend: "none", Err: compute.ErrUnavailable}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalized()
	grid := terrain.New(cfg.Size)
	d := &Driver{
		backend:  backend,
		logger:   logger.Named("driver"),
		n:        cfg.Size,
		cfg:      cfg,
		grid:     grid,
		goal:     grid.Center(),
		variant:  cfg.Variant,
		pacing:   core.ClampPacing(cfg.Pacing),
		detector: convergence.New(),
		estimate: estimate.New(),
	}
	if err := d.backend.Write(ctx, compute.BufferTerrain, grid.Weights()); err != nil {
		return nil, &InitError{Backend: backend.Name(), Err: err}
	}
	if err := d.reseedLocked(ctx); err != nil {
		return nil, &InitError{Backend: backend.Name(), Err: err}
	}
	d.estimate.Init(d.n, 0, 0)
	d.logger.Info("Driver ready",
		zap.String("backend", backend.Name()),
		zap.Int("size", d.n),
		zap.Stringer("variant", d.variant),
		zap.Duration("pacing", d.pacing))
	return d, nil
}

// Close stops any run and releases the backend.
func (d *Driver) Close() error {
	d.Stop()
	_ = d.Wait()
	return d.backend.Close()
}

// Start begins a fresh run from the current terrain and goal. A run already
// in progress is stopped and allowed to settle first.
func (d *Driver) Start(ctx context.Context) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()

	if d.haltLoop() && d.cfg.Settle > 0 {
		if !core.Sleep(ctx, d.cfg.Settle) {
			return ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.reseedLocked(ctx); err != nil {
		return &DispatchError{Kernel: "reseed", Err: err}
	}
	d.steps = 0
	d.err = nil
	imp, diff := d.grid.Counts()
	d.estimate.Init(d.n, imp, diff)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.state = Running
	d.logger.Info("Run started",
		zap.Int("goal_x", d.goal.X),
		zap.Int("goal_y", d.goal.Y),
		zap.Stringer("variant", d.variant),
		zap.Float64("max_estimate", d.estimate.Value()))
	go d.loop(loopCtx, done)
	return nil
}

// haltLoop stops the running loop goroutine, if any, and waits for it to
// exit. It reports whether a run was active.
func (d *Driver) haltLoop() bool {
	d.mu.Lock()
	wasRunning := d.state == Running
	if wasRunning {
		d.state = Stopped
	}
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return wasRunning
}

// Stop ends an active run. The step in flight completes; no further step
// starts. Calling Stop on a driver that is not running has no effect.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Running {
		d.state = Stopped
		d.logger.Info("Run stopped", zap.Int("iteration", d.iteration))
	}
	if d.cancel != nil {
		d.cancel()
	}
}

// Wait blocks until the current loop goroutine exits and returns the error
// that ended it, if any.
func (d *Driver) Wait() error {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
	return d.Err()
}

// Err returns the dispatch error that stopped the most recent run.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Driver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		d.mu.Lock()
		if d.state != Running {
			d.mu.Unlock()
			return
		}
		finished, err := d.stepLocked(ctx)
		pacing := d.pacing
		d.mu.Unlock()

		if err != nil || finished {
			return
		}
		if pacing > 0 {
			if !core.Sleep(ctx, pacing) {
				return
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

// Step advances the field by one iteration. The loop goroutine calls it
// repeatedly; it may also be driven directly when no run is active.
func (d *Driver) Step(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.stepLocked(ctx)
	return err
}

// stepLocked runs propagate, flow and the periodic checks. It reports whether
// the run has finished. Cancellation of ctx stops pacing, never a step that
// has begun.
func (d *Driver) stepLocked(ctx context.Context) (bool, error) {
	ctx = context.WithoutCancel(ctx)
	ext := compute.Extent{W: d.n, H: d.n}
	goal := d.grid.Index(d.goal.X, d.goal.Y)
	src := compute.PotentialBuffer(d.slots.Current())
	dst := compute.PotentialBuffer(d.slots.Alternate())

	prop := compute.PropagateKernel(d.variant)
	if err := d.dispatch(ctx, prop, compute.Bindings{Source: src, Dest: dst, Goal: goal}, ext); err != nil {
		return true, d.fail(err)
	}
	d.flowFresh = false
	flow := compute.FlowKernel(d.variant)
	if err := d.dispatch(ctx, flow, compute.Bindings{Source: dst, Dest: compute.BufferFlow, Goal: goal}, ext); err != nil {
		return true, d.fail(err)
	}

	d.slots.Swap()
	d.flowFresh = true
	d.iteration++
	d.steps++

	if (d.iteration-1)%d.cfg.CheckEvery == 0 {
		sample, err := d.backend.Readback(ctx, dst)
		if err != nil {
			return true, d.fail(&DispatchError{Kernel: "readback", Err: err})
		}
		converged := d.detector.Check(sample)
		if d.estimate.Update(sample) {
			d.logger.Debug("Max estimate adjusted", zap.Float64("max_estimate", d.estimate.Value()))
		}
		if converged {
			d.converged = true
			d.state = Converged
			d.logger.Info("Field converged", zap.Int("iteration", d.iteration))
			return true, nil
		}
	}
	if d.cfg.MaxIterations > 0 && d.steps >= d.cfg.MaxIterations {
		if d.state == Running {
			d.state = Stopped
		}
		d.logger.Info("Iteration limit reached",
			zap.Int("iteration", d.iteration),
			zap.Int("max_iterations", d.cfg.MaxIterations))
		return true, nil
	}
	return false, nil
}

func (d *Driver) dispatch(ctx context.Context, k compute.KernelID, b compute.Bindings, ext compute.Extent) error {
	r, err := d.backend.Dispatch(ctx, k, b, ext)
	if err != nil {
		return &DispatchError{Kernel: k.String(), Err: err}
	}
	if err := d.backend.Wait(ctx, r); err != nil {
		return &DispatchError{Kernel: k.String(), Err: err}
	}
	return nil
}

func (d *Driver) fail(err error) error {
	d.err = err
	d.state = Stopped
	d.converged = false
	d.detector.Invalidate()
	d.logger.Error("Step aborted", zap.Int("iteration", d.iteration), zap.Error(err))
	return err
}

// reseedLocked writes the seed potential into both slots and clears flow and
// convergence tracking. A converged driver drops back to Stopped; a running
// loop keeps running.
func (d *Driver) reseedLocked(ctx context.Context) error {
	cells := d.n * d.n
	seed := field.SeedPotential(cells, d.grid.Index(d.goal.X, d.goal.Y))
	for _, id := range []compute.BufferID{compute.BufferPotentialA, compute.BufferPotentialB} {
		if err := d.backend.Write(ctx, id, seed); err != nil {
			return fmt.Errorf("seeding %s: %w", id, err)
		}
	}
	if err := d.backend.Write(ctx, compute.BufferFlow, field.ZeroFlow(cells)); err != nil {
		return fmt.Errorf("clearing flow: %w", err)
	}
	d.slots.Reset()
	d.iteration = 0
	d.converged = false
	if d.state == Converged {
		d.state = Stopped
	}
	d.flowFresh = true
	d.detector.Invalidate()
	return nil
}

// ApplyEdit applies an edit from an editing surface. It reports whether the
// edit changed anything; out-of-bounds edits, edits that would block the goal,
// edits with an unknown class and edits that leave the cell unchanged are
// ignored.
func (d *Driver) ApplyEdit(ctx context.Context, e terrain.Edit) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := e.Cell()
	if !d.grid.Contains(c) {
		return false, nil
	}
	if !e.Goal && !e.Class.Valid() {
		d.logger.Debug("Ignoring edit with unknown class", zap.Stringer("class", e.Class))
		return false, nil
	}
	if e.Goal {
		return true, d.relocateLocked(ctx, c)
	}
	if c == d.goal && e.Class == terrain.Impassable {
		d.logger.Debug("Ignoring edit that would block the goal", zap.Int("x", c.X), zap.Int("y", c.Y))
		return false, nil
	}
	if d.grid.At(c.X, c.Y) == e.Class {
		return false, nil
	}
	d.grid.Set(c.X, c.Y, e.Class)
	if err := d.backend.Write(ctx, compute.BufferTerrain, d.grid.Weights()); err != nil {
		return false, fmt.Errorf("uploading terrain: %w", err)
	}
	if err := d.reseedLocked(ctx); err != nil {
		return false, err
	}
	d.estimate.AfterTerrainEdit(d.n)
	d.logger.Debug("Terrain edited",
		zap.Int("x", c.X),
		zap.Int("y", c.Y),
		zap.Stringer("class", e.Class))
	return true, nil
}

// RelocateGoal moves the goal and reseeds the field. It does not start or
// stop a run. Out-of-bounds targets are ignored.
func (d *Driver) RelocateGoal(ctx context.Context, x, y int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := terrain.Cell{X: x, Y: y}
	if !d.grid.Contains(c) {
		return false, nil
	}
	return true, d.relocateLocked(ctx, c)
}

func (d *Driver) relocateLocked(ctx context.Context, c terrain.Cell) error {
	if d.grid.At(c.X, c.Y) == terrain.Impassable {
		d.grid.Set(c.X, c.Y, terrain.Open)
		if err := d.backend.Write(ctx, compute.BufferTerrain, d.grid.Weights()); err != nil {
			return fmt.Errorf("uploading terrain: %w", err)
		}
	}
	d.goal = c
	if err := d.reseedLocked(ctx); err != nil {
		return err
	}
	d.logger.Debug("Goal relocated", zap.Int("x", c.X), zap.Int("y", c.Y))
	return nil
}

// ResetAll stops any run, clears the terrain and returns the goal to the
// centre.
func (d *Driver) ResetAll(ctx context.Context) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	d.haltLoop()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.grid.Clear()
	if err := d.backend.Write(ctx, compute.BufferTerrain, d.grid.Weights()); err != nil {
		return fmt.Errorf("uploading terrain: %w", err)
	}
	d.goal = d.grid.Center()
	if err := d.reseedLocked(ctx); err != nil {
		return err
	}
	d.steps = 0
	d.estimate.Reset()
	d.logger.Info("Grid reset")
	return nil
}

// SetVariant switches the neighborhood used from the next step on. The
// current potential is kept.
func (d *Driver) SetVariant(v kernel.Variant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v == d.variant {
		return
	}
	d.variant = v
	d.converged = false
	d.detector.Invalidate()
	d.estimate.AfterVariantSwitch(d.n)
	d.logger.Info("Variant switched", zap.Stringer("variant", v), zap.Float64("max_estimate", d.estimate.Value()))
}

// Variant returns the active neighborhood.
func (d *Driver) Variant() kernel.Variant {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.variant
}

// SetPacing sets the delay between steps, clamped to the supported range.
// Zero disables pacing.
func (d *Driver) SetPacing(p time.Duration) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pacing = core.ClampPacing(p)
	return d.pacing
}

// LoadTerrain replaces the grid and places the goal on the Open cell nearest
// the centre.
func (d *Driver) LoadTerrain(ctx context.Context, g *terrain.Grid) error {
	if g == nil || g.N() != d.n {
		return fmt.Errorf("%w: want %d", ErrSizeMismatch, d.n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grid = g.Clone()
	d.goal = d.grid.NearestOpen(d.grid.Center())
	if d.grid.At(d.goal.X, d.goal.Y) == terrain.Impassable {
		d.grid.Set(d.goal.X, d.goal.Y, terrain.Open)
	}
	if err := d.backend.Write(ctx, compute.BufferTerrain, d.grid.Weights()); err != nil {
		return fmt.Errorf("uploading terrain: %w", err)
	}
	if err := d.reseedLocked(ctx); err != nil {
		return err
	}
	d.estimate.AfterTerrainEdit(d.n)
	imp, diff := d.grid.Counts()
	d.logger.Info("Terrain loaded",
		zap.Int("impassable", imp),
		zap.Int("difficult", diff),
		zap.Int("goal_x", d.goal.X),
		zap.Int("goal_y", d.goal.Y))
	return nil
}

// Consume applies edits from ch until it closes or ctx is done.
func (d *Driver) Consume(ctx context.Context, ch <-chan terrain.Edit) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := d.ApplyEdit(ctx, e); err != nil {
				return err
			}
		}
	}
}

// Snapshot is a consistent view of the committed field for renderers.
type Snapshot struct {
	Size      int
	Potential []float32
	// Flow is nil while the flow buffer is stale.
	Flow        []field.Vec2
	Terrain     *terrain.Grid
	MaxEstimate float64
	Iteration   int
	State       State
	Converged   bool
	Goal        terrain.Cell
	Variant     kernel.Variant
}

// Snapshot reads back the committed potential and, when current, the flow.
func (d *Driver) Snapshot(ctx context.Context) (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pot, err := d.backend.Readback(ctx, compute.PotentialBuffer(d.slots.Current()))
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading potential: %w", err)
	}
	s := Snapshot{
		Size:        d.n,
		Potential:   pot,
		Terrain:     d.grid.Clone(),
		MaxEstimate: d.estimate.Value(),
		Iteration:   d.iteration,
		State:       d.state,
		Converged:   d.converged,
		Goal:        d.goal,
		Variant:     d.variant,
	}
	if d.flowFresh {
		raw, err := d.backend.Readback(ctx, compute.BufferFlow)
		if err != nil {
			return Snapshot{}, fmt.Errorf("reading flow: %w", err)
		}
		s.Flow = field.UnpackFlow(raw)
	}
	return s, nil
}

// State returns the lifecycle phase.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Iteration returns the number of steps since the last reseed.
func (d *Driver) Iteration() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iteration
}

// Converged reports whether the field has settled since the last reseed.
func (d *Driver) Converged() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.converged
}

// Goal returns the goal cell.
func (d *Driver) Goal() terrain.Cell {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.goal
}

// MaxEstimate returns the display range estimate.
func (d *Driver) MaxEstimate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.estimate.Value()
}

// Size returns the grid side length.
func (d *Driver) Size() int { return d.n }

// Parameters describes the live settings for HUDs and reports.
func (d *Driver) Parameters() core.ParameterSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	imp, diff := d.grid.Counts()
	return core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{
			Name: "Simulation",
			Params: []core.Parameter{
				core.StringParam("backend", "Backend", d.backend.Name()),
				core.IntParam("size", "Grid size", d.n),
				core.StringParam("variant", "Variant", d.variant.String()),
				core.IntParam("pacing_ms", "Pacing (ms)", int(d.pacing/time.Millisecond)),
				core.IntParam("check_every", "Check every", d.cfg.CheckEvery),
				core.IntParam("max_iterations", "Max iterations", d.cfg.MaxIterations),
			},
		},
		{
			Name: "Status",
			Params: []core.Parameter{
				core.StringParam("state", "State", d.state.String()),
				core.IntParam("iteration", "Iteration", d.iteration),
				core.BoolParam("converged", "Converged", d.converged),
				core.IntParam("checks", "Checks", d.detector.Checks()),
				core.FloatParam("max_estimate", "Max estimate", d.estimate.Value()),
				core.IntParam("goal_x", "Goal X", d.goal.X),
				core.IntParam("goal_y", "Goal Y", d.goal.Y),
				core.IntParam("impassable", "Impassable", imp),
				core.IntParam("difficult", "Difficult", diff),
			},
		},
	}}
}
