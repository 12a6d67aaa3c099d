package compute

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flowfield/internal/kernel"
)

// rowBand is a contiguous range of rows handled by one worker.
type rowBand struct{ start, end int }

// assignRowBands splits n rows into at most workerCount contiguous bands.
func assignRowBands(workerCount, n int) []rowBand {
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > n {
		workerCount = n
	}
	bands := make([]rowBand, 0, workerCount)
	chunk := (n + workerCount - 1) / workerCount
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		bands = append(bands, rowBand{start: start, end: end})
	}
	return bands
}

type pending struct {
	done chan struct{}
	err  error
}

// CPU runs kernels on goroutines, one per row band.
type CPU struct {
	n       int
	workers int
	bands   []rowBand
	logger  *zap.Logger

	mu      sync.Mutex
	buffers map[BufferID][]float32
	next    Receipt
	pending map[Receipt]*pending
}

// NewCPU allocates the four device buffers for an n×n grid.
func NewCPU(n, workers int, logger *zap.Logger) *CPU {
	if n <= 0 {
		n = 1
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CPU{
		n:       n,
		workers: workers,
		bands:   assignRowBands(workers, n),
		logger:  logger.Named("cpu"),
		buffers: make(map[BufferID][]float32, 4),
		pending: make(map[Receipt]*pending),
	}
	for _, id := range []BufferID{BufferTerrain, BufferPotentialA, BufferPotentialB, BufferFlow} {
		c.buffers[id] = make([]float32, bufferLen(id, n))
	}
	c.logger.Debug("CPU backend ready", zap.Int("size", n), zap.Int("workers", workers), zap.Int("bands", len(c.bands)))
	return c
}

// Name identifies the backend.
func (c *CPU) Name() string { return "cpu" }

// Write replaces the contents of a buffer.
func (c *CPU) Write(ctx context.Context, id BufferID, data []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return fmt.Errorf("%w: unknown buffer %s", ErrBinding, id)
	}
	if len(data) != len(buf) {
		return fmt.Errorf("%w: %s holds %d values, got %d", ErrBinding, id, len(buf), len(data))
	}
	copy(buf, data)
	return nil
}

// Dispatch launches the kernel across all row bands and returns immediately.
func (c *CPU) Dispatch(ctx context.Context, k KernelID, b Bindings, ext Extent) (Receipt, error) {
	if err := validate(k, b, ext, c.n); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	lat := kernel.Lattice{N: c.n, Weights: c.buffers[BufferTerrain], Goal: b.Goal}
	src := c.buffers[b.Source]
	dst := c.buffers[b.Dest]
	c.next++
	r := c.next
	p := &pending{done: make(chan struct{})}
	c.pending[r] = p
	c.mu.Unlock()

	run := c.bandFunc(k, lat, src, dst)
	go func() {
		defer close(p.done)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for _, band := range c.bands {
			band := band
			g.Go(func() (err error) {
				if err := gctx.Err(); err != nil {
					return err
				}
				defer func() {
					if rec := recover(); rec != nil {
						err = fmt.Errorf("%s rows %d-%d panicked: %v", k, band.start, band.end, rec)
					}
				}()
				run(band.start*c.n, band.end*c.n)
				return nil
			})
		}
		p.err = g.Wait()
	}()
	return r, nil
}

func (c *CPU) bandFunc(k KernelID, lat kernel.Lattice, src, dst []float32) func(lo, hi int) {
	switch k {
	case KernelPropagateAxis:
		return func(lo, hi int) { kernel.PropagateRange(kernel.PropagateAxis, lat, src, dst, lo, hi) }
	case KernelFlowRelaxed:
		return func(lo, hi int) { kernel.FlowRange(kernel.FlowRelaxed, lat, src, dst, lo, hi) }
	case KernelFlowAxis:
		return func(lo, hi int) { kernel.FlowRange(kernel.FlowAxis, lat, src, dst, lo, hi) }
	default:
		return func(lo, hi int) { kernel.PropagateRange(kernel.PropagateRelaxed, lat, src, dst, lo, hi) }
	}
}

// Wait blocks until the dispatch identified by r has finished.
func (c *CPU) Wait(ctx context.Context, r Receipt) error {
	c.mu.Lock()
	p, ok := c.pending[r]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownReceipt, r)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
	}
	c.mu.Lock()
	delete(c.pending, r)
	c.mu.Unlock()
	return p.err
}

// Readback returns a private copy of a buffer.
func (c *CPU) Readback(ctx context.Context, id BufferID) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown buffer %s", ErrBinding, id)
	}
	out := make([]float32, len(buf))
	copy(out, buf)
	return out, nil
}

// Close releases nothing; buffers are garbage collected.
func (c *CPU) Close() error { return nil }
